package optimizer

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/zombar/optimizer/models"
)

// Precompiled patterns used by metric extraction. All extraction is
// rule-based and deterministic: the same input always yields the same
// MetricSet, with no external calls.
var (
	reStatPercent   = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:%|percent)`)
	reStatCurrency  = regexp.MustCompile(`[$€£]\s?\d`)
	reStatUnit      = regexp.MustCompile(`(?i)\b\d[\d,.]*\s*(?:million|billion|thousand|times|hours?|minutes?|days?|years?|users?|customers?|people|companies)\b`)
	reStatCitation  = regexp.MustCompile(`(?i)according to .*\d`)
	reDefinition    = regexp.MustCompile(`(?i)\b(?:is defined as|refers to|means that|is a type of|stands for|is the process of)\b`)
	reFAQHeading    = regexp.MustCompile(`(?i)^#{1,4}\s*(?:faq|frequently asked questions?)\b`)
	reHowToHeading  = regexp.MustCompile(`(?i)^#{1,4}\s*(?:how to|step[- ]by[- ]step|steps?\b)`)
	reQLine         = regexp.MustCompile(`^\**Q[:.)]`)
	reStepLine      = regexp.MustCompile(`(?i)^(?:\d+[.)]\s|step\s+\d+)`)
	reHeadingLine   = regexp.MustCompile(`^(#{2,4})\s+(.*)`)
	reListLine      = regexp.MustCompile(`^[-*+]\s+`)
	reTableSep      = regexp.MustCompile(`^\|?[\s:-]*-{3,}[\s|:-]*$`)
	reMarkdownLink  = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
	reNearMe        = regexp.MustCompile(`(?i)\bnear me\b`)
	reSecondPerson  = regexp.MustCompile(`(?i)\byou(?:r|'re|'ll)?\b`)
	reExamplePhrase = regexp.MustCompile(`(?i)\b(?:for example|for instance|case study|e\.g\.)`)
	reCallToAction  = regexp.MustCompile(`(?i)\b(?:contact us|get started|learn more|sign up|book a|call us|schedule a|request a quote|try it|download|subscribe)\b`)
	reHTMLTag       = regexp.MustCompile(`<\s*(?:p|div|h[1-6]|a|ul|ol|table|br|img|span)\b`)
)

// Sentence starters that depend on prior context; such sentences are not
// considered quotable on their own.
var dependentStarters = map[string]bool{
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "they": true, "he": true, "she": true,
	"however": true, "but": true, "and": true, "so": true,
	"also": true, "then": true, "such": true,
}

// Opening phrases that mark background/setup rather than a direct answer.
var setupOpeners = []string{
	"in this article", "in this post", "in this guide", "in today's",
	"before we", "let's start", "as we all know", "nowadays",
	"over the years", "the history of", "first, a little background",
}

// Transition words counted at sentence starts for flow scoring.
var transitionStarters = []string{
	"however", "moreover", "furthermore", "additionally", "consequently",
	"therefore", "meanwhile", "similarly", "for example", "for instance",
	"in addition", "as a result", "on the other hand", "finally",
	"first", "second", "third", "next", "ultimately", "in short",
}

// bodyShape is the structural view of a document body shared by the
// feature detectors. Markdown and HTML bodies both reduce to this.
type bodyShape struct {
	text          string
	paragraphs    []string
	headings      []string
	internalLinks int
	externalLinks int
	tableCount    int
	listBlocks    int
	faqPairs      int
	hasFAQHeading bool
	howToSteps    int
	hasHowTo      bool
}

// ExtractMetrics derives the full feature set for a document. It is a
// total function over all inputs: an empty or whitespace-only body yields
// an all-zero MetricSet, never an error.
func ExtractMetrics(doc models.ContentDocument) models.MetricSet {
	m := models.MetricSet{
		TitleLength:    len(strings.TrimSpace(doc.Title)),
		MetaDescLength: len(strings.TrimSpace(doc.MetaDescription)),
	}

	body := norm.NFC.String(strings.ReplaceAll(doc.Body, "\r\n", "\n"))
	if strings.TrimSpace(body) == "" {
		return m
	}

	var shape bodyShape
	if looksLikeHTML(body) {
		shape = shapeFromHTML(body)
	} else {
		shape = shapeFromMarkdown(body)
	}

	sentences := splitSentences(shape.text)
	words := strings.Fields(shape.text)

	m.WordCount = len(words)
	m.SentenceCount = len(sentences)
	m.ParagraphCount = len(shape.paragraphs)
	if len(sentences) > 0 {
		m.AvgSentenceWords = float64(m.WordCount) / float64(len(sentences))
	}

	m.FleschScore = fleschReadingEase(words, len(sentences))
	m.ComplexWordRatio = complexWordRatio(words)

	for _, s := range sentences {
		if isStatisticSentence(s) {
			m.StatisticCount++
		}
		if isQuotableSentence(s) {
			m.QuotableCount++
		}
		if reDefinition.MatchString(s) {
			m.DefinitionCount++
		}
		lower := strings.ToLower(strings.TrimSpace(s))
		for _, t := range transitionStarters {
			if strings.HasPrefix(lower, t) {
				m.TransitionCount++
				break
			}
		}
	}

	m.HasDirectAnswer = hasDirectAnswer(doc.Title, sentences)
	m.AnswerFirst = m.HasDirectAnswer && answerBeforeSetup(shape.paragraphs)

	m.HasFAQSection = shape.hasFAQHeading || shape.faqPairs > 0
	m.FAQCount = shape.faqPairs
	m.HasHowToSteps = shape.hasHowTo
	m.HowToStepCount = shape.howToSteps
	m.HasTable = shape.tableCount > 0
	m.SubtopicCount = len(shape.headings)
	m.InternalLinkCount = shape.internalLinks
	m.ExternalLinkCount = shape.externalLinks
	m.ListBlockCount = shape.listBlocks

	if len(shape.paragraphs) > 0 {
		m.QuestionInIntro = strings.Contains(shape.paragraphs[0], "?")
	}
	m.HasCallToAction = reCallToAction.MatchString(shape.text)
	m.SecondPersonCount = len(reSecondPerson.FindAllString(shape.text, -1))
	m.ExampleCount = len(reExamplePhrase.FindAllString(shape.text, -1))

	if doc.Local != nil {
		m.HasLocalContext = true
		m.NearMeCount = len(reNearMe.FindAllString(shape.text, -1))
		m.CityMentions = countMentions(shape.text, doc.Local.City)
		m.AreaMentions = countMentions(shape.text, doc.Local.State) + countMentions(shape.text, doc.Local.ServiceArea)
	}

	return m
}

// looksLikeHTML reports whether a body is markup rather than markdown.
func looksLikeHTML(body string) bool {
	return reHTMLTag.MatchString(body)
}

// shapeFromMarkdown reduces a markdown/plain-text body line by line.
func shapeFromMarkdown(body string) bodyShape {
	var shape bodyShape
	var textParts []string
	var para []string
	inList := false
	inFAQ := false
	tableRows := 0

	flushPara := func() {
		if len(para) > 0 {
			shape.paragraphs = append(shape.paragraphs, strings.Join(para, " "))
			para = para[:0]
		}
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushPara()
			inList = false
			if tableRows >= 2 {
				shape.tableCount++
			}
			tableRows = 0
			continue
		}

		if h := reHeadingLine.FindStringSubmatch(trimmed); h != nil {
			flushPara()
			heading := strings.TrimSpace(h[2])
			switch {
			case reFAQHeading.MatchString(trimmed):
				shape.hasFAQHeading = true
				inFAQ = true
			case inFAQ && strings.HasSuffix(heading, "?"):
				// Question-style headings inside an FAQ block count as pairs.
				shape.faqPairs++
			default:
				shape.headings = append(shape.headings, heading)
				inFAQ = false
				if reHowToHeading.MatchString(trimmed) {
					shape.hasHowTo = true
				}
			}
			textParts = append(textParts, heading)
			continue
		}

		if reQLine.MatchString(trimmed) {
			shape.faqPairs++
		}
		if reStepLine.MatchString(trimmed) {
			shape.howToSteps++
		}
		if reListLine.MatchString(trimmed) {
			if !inList {
				shape.listBlocks++
				inList = true
			}
		} else {
			inList = false
		}

		if strings.Count(trimmed, "|") >= 2 {
			if !reTableSep.MatchString(trimmed) {
				tableRows++
			}
			continue
		}

		shape.internalLinks, shape.externalLinks = countMarkdownLinks(trimmed, shape.internalLinks, shape.externalLinks)

		clean := reMarkdownLink.ReplaceAllStringFunc(trimmed, func(link string) string {
			if end := strings.Index(link, "]"); end > 1 {
				return link[1:end]
			}
			return ""
		})
		para = append(para, clean)
		textParts = append(textParts, clean)
	}
	flushPara()
	if tableRows >= 2 {
		shape.tableCount++
	}
	if shape.howToSteps >= 2 {
		shape.hasHowTo = true
	}

	shape.text = strings.Join(textParts, "\n")
	return shape
}

// countMarkdownLinks classifies markdown links: relative targets are
// internal, absolute http(s) targets are external.
func countMarkdownLinks(line string, internal, external int) (int, int) {
	for _, match := range reMarkdownLink.FindAllStringSubmatch(line, -1) {
		href := match[1]
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			external++
		} else {
			internal++
		}
	}
	return internal, external
}

// shapeFromHTML flattens an HTML body into the same structural view,
// walking the node tree and skipping script/style content.
func shapeFromHTML(body string) bodyShape {
	var shape bodyShape
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		// Unparseable markup degrades to plain-text measurement.
		return shapeFromMarkdown(body)
	}

	var textParts []string
	inFAQ := false

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "h1", "h2", "h3", "h4":
				heading := strings.TrimSpace(nodeText(n))
				lower := strings.ToLower(heading)
				switch {
				case strings.Contains(lower, "faq") || strings.Contains(lower, "frequently asked"):
					shape.hasFAQHeading = true
					inFAQ = true
				case inFAQ && strings.HasSuffix(heading, "?"):
					shape.faqPairs++
				case n.Data != "h1":
					shape.headings = append(shape.headings, heading)
					inFAQ = false
					if strings.HasPrefix(lower, "how to") || strings.HasPrefix(lower, "step") {
						shape.hasHowTo = true
					}
				}
				textParts = append(textParts, heading)
				return
			case "p":
				text := strings.TrimSpace(nodeText(n))
				if text != "" {
					shape.paragraphs = append(shape.paragraphs, text)
					textParts = append(textParts, text)
					if reQLine.MatchString(text) {
						shape.faqPairs++
					}
				}
				// Links inside the paragraph still need counting.
				countHTMLLinks(n, &shape)
				return
			case "a":
				classifyHref(attr(n, "href"), &shape)
			case "table":
				shape.tableCount++
			case "ul":
				shape.listBlocks++
			case "ol":
				steps := childCount(n, "li")
				shape.howToSteps += steps
				if steps >= 2 {
					shape.hasHowTo = true
				}
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				textParts = append(textParts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	shape.text = strings.Join(textParts, "\n")
	if len(shape.paragraphs) == 0 && shape.text != "" {
		shape.paragraphs = []string{shape.text}
	}
	return shape
}

// nodeText extracts all text content beneath a node.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func countHTMLLinks(n *html.Node, shape *bodyShape) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			classifyHref(attr(n, "href"), shape)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
}

func classifyHref(href string, shape *bodyShape) {
	if href == "" {
		return
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		shape.externalLinks++
	} else {
		shape.internalLinks++
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func childCount(n *html.Node, name string) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == name {
			count++
		}
	}
	return count
}

// isStatisticSentence reports whether a sentence carries a numeric claim
// with a unit or percentage.
func isStatisticSentence(s string) bool {
	return reStatPercent.MatchString(s) ||
		reStatCurrency.MatchString(s) ||
		reStatUnit.MatchString(s) ||
		reStatCitation.MatchString(s)
}

// isQuotableSentence reports whether a sentence stands on its own: short,
// declarative, and not dependent on prior context.
func isQuotableSentence(s string) bool {
	s = strings.TrimSpace(s)
	words := strings.Fields(s)
	if len(words) < 8 || len(words) > 25 {
		return false
	}
	first := s[0]
	if first < 'A' || first > 'Z' {
		return false
	}
	if dependentStarters[strings.ToLower(strings.Trim(words[0], ",.;:"))] {
		return false
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "as mentioned") || strings.Contains(lower, "see above") || strings.Contains(lower, "see below") {
		return false
	}
	return strings.HasSuffix(s, ".")
}

// hasDirectAnswer reports whether the first two sentences of the body
// contain a declarative statement answering the question the title implies:
// either a copula/definition pattern, or an opener restating the subject of
// a question-form title.
func hasDirectAnswer(title string, sentences []string) bool {
	subject := questionSubject(title)
	limit := 2
	if len(sentences) < limit {
		limit = len(sentences)
	}
	for i := 0; i < limit; i++ {
		plain := strings.ToLower(strings.TrimSpace(sentences[i]))
		s := " " + plain + " "
		if strings.Contains(s, " is ") || strings.Contains(s, " are ") ||
			strings.Contains(s, " means ") || strings.Contains(s, " refers to ") ||
			strings.Contains(s, " helps ") || strings.Contains(s, " provides ") {
			n := len(strings.Fields(s))
			if n >= 3 && n <= 40 {
				return true
			}
		}
		if subject != "" && strings.HasPrefix(plain, subject) && strings.HasSuffix(plain, ".") {
			n := len(strings.Fields(plain))
			if n >= 3 && n <= 40 {
				return true
			}
		}
	}
	return false
}

var questionPrefixes = []string{
	"what is ", "what are ", "why is ", "why are ",
	"how does ", "how do ", "who is ", "when should ",
}

// questionSubject extracts the subject of a question-form title, e.g.
// "What is content scoring?" yields "content scoring". Non-question titles
// yield "".
func questionSubject(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = strings.TrimSuffix(t, "?")
	for _, p := range questionPrefixes {
		if strings.HasPrefix(t, p) {
			return strings.TrimSpace(strings.TrimPrefix(t, p))
		}
	}
	return ""
}

// answerBeforeSetup reports whether the opening paragraph is the answer
// rather than background: the direct answer must occur before any
// background/setup paragraph.
func answerBeforeSetup(paragraphs []string) bool {
	if len(paragraphs) == 0 {
		return false
	}
	opener := strings.ToLower(paragraphs[0])
	for _, phrase := range setupOpeners {
		if strings.HasPrefix(opener, phrase) {
			return false
		}
	}
	return true
}

// countMentions counts case-insensitive whole occurrences of a phrase.
func countMentions(text, phrase string) int {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(phrase))
}
