package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"github.com/zombar/optimizer/models"
	"github.com/zombar/optimizer/slug"
)

// ImageStore caches downloaded image candidates. The filesystem and S3
// storage backends both satisfy it.
type ImageStore interface {
	SaveImage(imageData []byte, slug, contentType string) (string, error)
}

// SetImageStore enables caching of probed image candidates. Without a
// store, probing still records metadata but keeps nothing on disk.
func (o *Optimizer) SetImageStore(store ImageStore) {
	o.imageStore = store
}

// ResolveImages finds candidate illustrative images for a topic keyword.
// The primary provider is tried first; if it returns fewer than count
// results (including zero, e.g. missing credentials) the secondary
// provider fills the shortfall, primary results first. When the keyword
// yields nothing from either provider, a derived query built from the
// document title's meaningful words is tried before giving up.
//
// Absence of images is a valid terminal state: this never returns an
// error, only a possibly-empty list.
func (o *Optimizer) ResolveImages(ctx context.Context, query, title string, count int) []models.ImageResult {
	if count <= 0 {
		count = 3
	}

	results := o.queryProviders(ctx, query, count)
	if len(results) == 0 {
		if derived := deriveQuery(title); derived != "" && derived != query {
			results = o.queryProviders(ctx, derived, count)
		}
	}
	if len(results) == 0 {
		return []models.ImageResult{}
	}

	if o.config.EnableImageProbing {
		results = o.probeImages(ctx, results)
	}
	return results
}

// queryProviders runs the primary/secondary fallback chain for one query.
func (o *Optimizer) queryProviders(ctx context.Context, query string, count int) []models.ImageResult {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	results, err := o.imagePrimary.Search(ctx, query, count)
	if err != nil {
		o.events.ProviderDegraded("images:"+o.imagePrimary.Name(), err.Error())
		results = nil
	}

	if len(results) < count {
		shortfall := count - len(results)
		secondary, err := o.imageSecondary.Search(ctx, query, shortfall)
		if err != nil {
			o.events.ProviderDegraded("images:"+o.imageSecondary.Name(), err.Error())
		} else {
			results = append(results, secondary...)
		}
	}

	for i := range results {
		if results[i].ID == "" {
			results[i].ID = uuid.New().String()
		}
	}
	return results
}

// deriveQuery builds a fallback query from a document title: meaningful
// words only (length > 4, stop words excluded), first two joined.
func deriveQuery(title string) string {
	words := slug.Keywords(title, 2)
	return strings.Join(words, " ")
}

// probeImages downloads candidates in parallel to record dimensions,
// content type and attribution. Probe failures leave the candidate as-is;
// probing is best-effort metadata, never a gate.
func (o *Optimizer) probeImages(ctx context.Context, images []models.ImageResult) []models.ImageResult {
	const maxWorkers = 4
	numWorkers := maxWorkers
	if len(images) < numWorkers {
		numWorkers = len(images)
	}

	type job struct {
		index int
		img   models.ImageResult
	}

	jobs := make(chan job, len(images))
	probed := make([]models.ImageResult, len(images))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				probed[j.index] = o.probeSingleImage(ctx, j.img)
			}
		}()
	}
	for i, img := range images {
		jobs <- job{index: i, img: img}
	}
	close(jobs)
	wg.Wait()

	return probed
}

// probeSingleImage downloads one candidate and fills in what it can.
func (o *Optimizer) probeSingleImage(ctx context.Context, img models.ImageResult) models.ImageResult {
	data, contentType, err := o.downloadImage(ctx, img.URL)
	if err != nil {
		log.Printf("image probe failed for %s: %v", img.URL, err)
		return img
	}

	img.ContentType = contentType
	img.FileSizeBytes = int64(len(data))

	if o.imageStore != nil {
		if path, err := o.imageStore.SaveImage(data, slug.Generate(img.ID), contentType); err != nil {
			log.Printf("image cache failed for %s: %v", img.URL, err)
		} else {
			img.FilePath = path
		}
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}

	// Stock photos often carry the photographer in EXIF; use it for
	// attribution when the provider gave none.
	if img.Attribution == "" {
		if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
			if tag, err := x.Get(exif.Artist); err == nil {
				if artist, err := tag.StringVal(); err == nil {
					img.Attribution = artist
				}
			}
			if img.Attribution == "" {
				if tag, err := x.Get(exif.Copyright); err == nil {
					if c, err := tag.StringVal(); err == nil {
						img.Attribution = c
					}
				}
			}
		}
	}
	return img
}

// downloadImage fetches an image with size and timeout limits.
func (o *Optimizer) downloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.ImageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength > o.config.MaxImageSizeBytes {
		return nil, "", fmt.Errorf("image too large: %d bytes (max: %d)", resp.ContentLength, o.config.MaxImageSizeBytes)
	}

	limited := io.LimitReader(resp.Body, o.config.MaxImageSizeBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > o.config.MaxImageSizeBytes {
		return nil, "", fmt.Errorf("image too large: exceeds %d bytes", o.config.MaxImageSizeBytes)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
