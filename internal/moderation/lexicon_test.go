package moderation

import "testing"

func TestMatchTranscriptBannedWordShortCircuits(t *testing.T) {
	lex := &Lexicon{High: []string{"ignored"}}
	event, matched := MatchTranscript(lex, []string{"금칙어"}, ProfanityHigh, "여기에 금칙어 있음")
	if !matched {
		t.Fatal("banned word substring should match")
	}
	if event.Type != "voice" || event.Detail != "금칙어" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestMatchTranscriptSeverityBucketHonorsLevel(t *testing.T) {
	lex := &Lexicon{High: []string{"high1"}, Mid: []string{"mid1"}, Low: []string{"low1"}}

	// At ProfanityLow, only the "high" bucket is active.
	_, matched := MatchTranscript(lex, nil, ProfanityLow, "this has mid1 in it")
	if matched {
		t.Fatal("mid-bucket word should not match when only high severity is active")
	}

	event, matched := MatchTranscript(lex, nil, ProfanityHigh, "this has high1 in it")
	if !matched || event.Detail != "high1" {
		t.Fatalf("high-bucket word should match at ProfanityHigh, got %+v, %v", event, matched)
	}
}

func TestMatchTranscriptPicksHighestPriorityBucket(t *testing.T) {
	lex := &Lexicon{High: []string{"bad"}, Low: []string{"meh"}}
	event, matched := MatchTranscript(lex, nil, ProfanityHigh, "bad and meh together")
	if !matched {
		t.Fatal("expected a match")
	}
	if event.Detail != "bad" {
		t.Fatalf("expected the higher-priority bucket's word to win, got %q", event.Detail)
	}
}

func TestMatchTranscriptNilLexiconAndNoBannedWordsNeverMatches(t *testing.T) {
	_, matched := MatchTranscript(nil, nil, ProfanityHigh, "anything at all")
	if matched {
		t.Fatal("nil lexicon with no banned words should never match (§7 missing lexicon)")
	}
}

func TestMatchTranscriptNoMatch(t *testing.T) {
	lex := &Lexicon{High: []string{"xyz"}}
	_, matched := MatchTranscript(lex, nil, ProfanityHigh, "totally clean transcript")
	if matched {
		t.Fatal("expected no match for a clean transcript")
	}
}
