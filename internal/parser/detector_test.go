package parser

import (
	"strings"
	"testing"
)

func builtinNames() []string {
	return []string{"read", "write", "edit", "mkdir", "glob", "grep", "shell"}
}

// feedChunks streams text through the detector in small chunks, then pads
// past the keep-back window so the whole text is scanned.
func feedChunks(d *Detector, text string, chunkSize int) (bool, string) {
	for len(text) > 0 {
		n := chunkSize
		if n > len(text) {
			n = len(text)
		}
		if abort, reason := d.Feed(text[:n]); abort {
			return abort, reason
		}
		text = text[n:]
	}
	return d.Feed(strings.Repeat(" ", keepBack+1))
}

func TestDetector_AbortsOnXMLStyle(t *testing.T) {
	d := NewDetector(builtinNames())
	text := "I'll read the file now:\n<read><filePath>src/main.go</filePath></read>\nLet me know."
	abort, reason := feedChunks(d, text, 7)
	if !abort {
		t.Fatal("abort = false, want true")
	}
	if !strings.Contains(reason, "read") {
		t.Errorf("reason = %q, want tag named", reason)
	}
}

func TestDetector_ProperJSONNotAborted(t *testing.T) {
	d := NewDetector(builtinNames())
	text := `{"tool": "read", "parameters": {"filePath": "main.go"}}`
	if abort, reason := feedChunks(d, text, 7); abort {
		t.Errorf("aborted valid JSON: %s", reason)
	}
}

func TestDetector_FencedXMLSuppressed(t *testing.T) {
	d := NewDetector(builtinNames())
	text := "Here is the old format you should never use:\n```\n<read><filePath>x</filePath></read>\n```\nUse JSON instead."
	if abort, reason := feedChunks(d, text, 7); abort {
		t.Errorf("aborted fenced example: %s", reason)
	}
}

func TestDetector_ProseMentionNotAborted(t *testing.T) {
	d := NewDetector(builtinNames())
	text := "First I will read the config, then write the output and maybe grep for errors."
	if abort, reason := feedChunks(d, text, 7); abort {
		t.Errorf("aborted plain prose: %s", reason)
	}
}

func TestDetector_ShorthandAloneNotAborted(t *testing.T) {
	d := NewDetector(builtinNames())
	text := "read(\"main.go\")"
	if abort, reason := feedChunks(d, text, 4); abort {
		t.Errorf("aborted shorthand: %s", reason)
	}
}

func TestDetector_SplitTagAcrossChunks(t *testing.T) {
	d := NewDetector(builtinNames())
	text := "calling now <re" + "ad><filePath>a.go</filePath></re" + "ad> done"
	abort, _ := feedChunks(d, text, 3)
	if !abort {
		t.Error("abort = false, want true for split XML tag")
	}
}

func TestDetector_StickyAfterAbort(t *testing.T) {
	d := NewDetector(builtinNames())
	text := "<read><filePath>a</filePath></read>" + strings.Repeat(".", keepBack+8)
	abort, _ := feedChunks(d, text, 16)
	if !abort {
		t.Fatal("not aborted")
	}
	if again, _ := d.Feed("harmless"); !again {
		t.Error("abort signal not sticky")
	}
}

func TestDetector_ResetClears(t *testing.T) {
	d := NewDetector(builtinNames())
	if abort, _ := feedChunks(d, "<read><filePath>a</filePath></read>", 8); !abort {
		t.Fatal("not aborted")
	}
	d.Reset()
	if abort, reason := feedChunks(d, "All good, plain text.", 8); abort {
		t.Errorf("aborted after reset: %s", reason)
	}
}

func TestDetector_NoNames(t *testing.T) {
	d := NewDetector(nil)
	if abort, _ := feedChunks(d, "<read><filePath>a</filePath></read>", 8); abort {
		t.Error("detector with no names aborted")
	}
}
