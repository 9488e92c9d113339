package parser

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	abortThreshold = 0.8
	// keepBack is the overlap rescanned on each feed so tokens split across
	// chunk boundaries are always seen whole.
	keepBack = 64
)

// Detector watches a streaming response for malformed tool-call dialects.
// When it is confident the model has lapsed into XML-style calls it signals
// an abort so the agent can cut the stream short and issue a correction
// instead of paying for the rest of a useless response.
//
// Work per feed is proportional to the chunk plus a constant overlap: scan
// cursors are memoized and signal flags are sticky, so rescanning the
// overlap is idempotent.
type Detector struct {
	keyword   *regexp.Regexp
	xmlTag    *regexp.Regexp
	shorthand *regexp.Regexp

	buf          strings.Builder
	sigScanned   int   // signals evaluated up to here (minus overlap)
	fenceScanned int   // fence openings deduped up to here
	fenceStarts  []int // absolute positions of ``` markers, ascending

	sawKeyword     bool
	sawXMLTag      bool
	sawToolLiteral bool
	sawShorthand   bool
	example        string

	aborted bool
	reason  string
}

// NewDetector builds a detector recognizing the given tool names.
func NewDetector(names []string) *Detector {
	d := &Detector{}
	if len(names) == 0 {
		return d
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(n))
	}
	group := "(?i)(?:" + strings.Join(quoted, "|") + ")"
	d.keyword = regexp.MustCompile(`\b` + group + `\b`)
	d.xmlTag = regexp.MustCompile(`</?` + group + `>`)
	d.shorthand = regexp.MustCompile(`\b` + group + `\s*\(`)
	return d
}

// Feed consumes the next chunk and reports whether the stream should be
// aborted. Once it signals abort it keeps signaling until Reset.
func (d *Detector) Feed(chunk string) (bool, string) {
	if d.aborted {
		return true, d.reason
	}
	d.buf.WriteString(chunk)
	full := d.buf.String()
	d.trackFences(full)
	d.scanSignals(full)
	return d.evaluate()
}

// Reset clears all accumulated state for the next model response.
func (d *Detector) Reset() {
	d.buf.Reset()
	d.sigScanned = 0
	d.fenceScanned = 0
	d.fenceStarts = d.fenceStarts[:0]
	d.sawKeyword = false
	d.sawXMLTag = false
	d.sawToolLiteral = false
	d.sawShorthand = false
	d.example = ""
	d.aborted = false
	d.reason = ""
}

// trackFences records each ``` marker exactly once by absolute position. A
// two-byte rescan margin catches markers split across feeds.
func (d *Detector) trackFences(full string) {
	idx := d.fenceScanned - 2
	if idx < 0 {
		idx = 0
	}
	for {
		rel := strings.Index(full[idx:], "```")
		if rel < 0 {
			break
		}
		abs := idx + rel
		if abs >= d.fenceScanned {
			d.fenceStarts = append(d.fenceStarts, abs)
		}
		idx = abs + 3
	}
	if n := len(full) - 2; n > d.fenceScanned {
		d.fenceScanned = n
	}
}

// inFenceAt reports the fence parity at an absolute position.
func (d *Detector) inFenceAt(pos int) bool {
	n := 0
	for _, f := range d.fenceStarts {
		if f > pos {
			break
		}
		n++
	}
	return n%2 == 1
}

func (d *Detector) scanSignals(full string) {
	if d.keyword == nil {
		return
	}
	from := d.sigScanned - keepBack
	if from < 0 {
		from = 0
	}
	window := full[from:]

	if !d.sawToolLiteral && strings.Contains(window, `"tool"`) {
		d.sawToolLiteral = true
	}
	for _, loc := range d.xmlTag.FindAllStringIndex(window, -1) {
		if d.inFenceAt(from + loc[0]) {
			continue
		}
		d.sawXMLTag = true
		d.sawKeyword = true
		if d.example == "" {
			d.example = window[loc[0]:loc[1]]
		}
	}
	if !d.sawKeyword {
		for _, loc := range d.keyword.FindAllStringIndex(window, -1) {
			if !d.inFenceAt(from + loc[0]) {
				d.sawKeyword = true
				break
			}
		}
	}
	if !d.sawShorthand {
		for _, loc := range d.shorthand.FindAllStringIndex(window, -1) {
			if !d.inFenceAt(from + loc[0]) {
				d.sawShorthand = true
				break
			}
		}
	}

	if n := len(full) - keepBack; n > d.sigScanned {
		d.sigScanned = n
	}
}

func (d *Detector) evaluate() (bool, string) {
	conf := 0.0
	if d.sawKeyword {
		conf += 0.4
	}
	if d.sawXMLTag {
		conf += 0.3
	}
	if !d.sawToolLiteral {
		conf += 0.2
	}
	if d.sawShorthand {
		conf += 0.1
	}
	if conf < abortThreshold {
		return false, ""
	}
	d.aborted = true
	what := d.example
	if what == "" {
		what = "non-JSON call syntax"
	}
	d.reason = fmt.Sprintf("malformed tool-call syntax detected (%s)", what)
	return true, d.reason
}
