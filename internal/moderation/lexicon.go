package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Lexicon holds the three severity-bucketed word lists loaded at startup
// (§4.5 Profanity lexicon). A nil Lexicon (failed load) disables audio
// event emission entirely (§7 "Missing lexicon file") while transcription
// itself continues.
type Lexicon struct {
	High []string `json:"high"`
	Mid  []string `json:"mid"`
	Low  []string `json:"low"`
}

// LoadLexicon reads a UTF-8 JSON lexicon file with keys high/mid/low
// (§6 "Lexicon file").
func LoadLexicon(path string) (*Lexicon, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var lex Lexicon
	if err := json.Unmarshal(b, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	return &lex, nil
}

const (
	categoryBanned   = "금지어"
	categorySevHigh  = "욕설-수위 높음"
	categorySevMid   = "욕설-수위 중간"
	categorySevLow   = "욕설-수위 낮음"
)

var severityPriority = map[string]int{"high": 3, "mid": 2, "low": 1}
var severityCategory = map[string]string{"high": categorySevHigh, "mid": categorySevMid, "low": categorySevLow}

// MatchTranscript implements the matching order and priority of §4.5: a
// banned-word substring match (on the whitespace-stripped transcript)
// short-circuits; otherwise the active severity buckets are scanned and the
// highest-priority match wins. Returns (event, true) or (zero, false) if
// nothing matched. lex may be nil, in which case no match is ever found
// (audio event emission disabled, §7).
func MatchTranscript(lex *Lexicon, bannedWords []string, level ProfanityLevel, transcript string) (Event, bool) {
	if lex == nil {
		return Event{}, false
	}

	compact := stripWhitespace(transcript)
	for _, word := range bannedWords {
		if word == "" {
			continue
		}
		if strings.Contains(compact, word) {
			return Event{Type: "voice", Category: categoryBanned, Detail: word, Time: nowHHMMSS()}, true
		}
	}

	if lex == nil {
		return Event{}, false
	}

	active := ActiveSeverityBuckets(level)
	buckets := map[string][]string{"high": lex.High, "mid": lex.Mid, "low": lex.Low}

	bestPriority := 0
	bestWord := ""
	bestBucket := ""
	for bucket, words := range buckets {
		if !active[bucket] {
			continue
		}
		for _, word := range words {
			if word == "" {
				continue
			}
			if strings.Contains(transcript, word) {
				if severityPriority[bucket] > bestPriority {
					bestPriority = severityPriority[bucket]
					bestWord = word
					bestBucket = bucket
				}
			}
		}
	}

	if bestPriority == 0 {
		return Event{}, false
	}
	return Event{Type: "voice", Category: severityCategory[bestBucket], Detail: bestWord, Time: nowHHMMSS()}, true
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
