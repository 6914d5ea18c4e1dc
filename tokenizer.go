package main

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer is the playground tokenizer: whitespace words plus a
// character vocabulary built from the same text.
type Tokenizer struct {
	toID      map[string]int
	toWord    map[int]string
	vocabSize int
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		toID:   make(map[string]int),
		toWord: make(map[int]string),
	}
}

// BuildVocab assigns ids to the distinct characters of text, most frequent
// first, ties broken by character.
func (t *Tokenizer) BuildVocab(text string) {
	charCount := make(map[string]int)
	for _, r := range text {
		char := string(r)
		if unicode.IsSpace(r) {
			char = " " // normalize all whitespace to space
		}
		charCount[char]++
	}

	type charFreq struct {
		char string
		freq int
	}
	chars := make([]charFreq, 0, len(charCount))
	for char, freq := range charCount {
		chars = append(chars, charFreq{char, freq})
	}
	sort.Slice(chars, func(i, j int) bool {
		if chars[i].freq != chars[j].freq {
			return chars[i].freq > chars[j].freq
		}
		return chars[i].char < chars[j].char
	})

	t.toID = make(map[string]int, len(chars))
	t.toWord = make(map[int]string, len(chars))
	for id, cf := range chars {
		t.toID[cf.char] = id
		t.toWord[id] = cf.char
	}
	t.vocabSize = len(chars)
}

// Encode converts text to character ids. Unknown characters map to -1.
func (t *Tokenizer) Encode(text string) []int {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		char := string(r)
		if unicode.IsSpace(r) {
			char = " "
		}
		if id, exists := t.toID[char]; exists {
			ids = append(ids, id)
		} else {
			ids = append(ids, -1)
		}
	}
	return ids
}

// Decode converts ids back to text, skipping unknown ids.
func (t *Tokenizer) Decode(ids []int) string {
	var result strings.Builder
	for _, id := range ids {
		if word, exists := t.toWord[id]; exists {
			result.WriteString(word)
		}
	}
	return result.String()
}

func (t *Tokenizer) GetVocabSize() int {
	return t.vocabSize
}

// Vocab lists the vocabulary in id order.
func (t *Tokenizer) Vocab() []string {
	out := make([]string, t.vocabSize)
	for id, w := range t.toWord {
		out[id] = w
	}
	return out
}

// SplitWords is the playground's word split: spaces only, empty pieces dropped.
func SplitWords(text string) []string {
	words := []string{}
	for _, w := range strings.Split(text, " ") {
		if len(w) > 0 {
			words = append(words, w)
		}
	}
	return words
}

// TokenCounter counts subword tokens.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts BPE tokens with a tiktoken encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) CountTokens(text string) int {
	if c.enc == nil || text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Tokenization is the playground output for one text.
type Tokenization struct {
	Words        []string `json:"words"`
	TokenCount   int      `json:"token_count"`
	CharacterIDs []int    `json:"character_ids"`
	Vocab        []string `json:"vocab"`
	BPETokens    *int     `json:"bpe_tokens,omitempty"`
}

// Tokenize runs the playground over text. counter may be nil.
func Tokenize(text string, counter TokenCounter) Tokenization {
	tok := NewTokenizer()
	tok.BuildVocab(text)

	words := SplitWords(text)
	out := Tokenization{
		Words:        words,
		TokenCount:   len(words),
		CharacterIDs: tok.Encode(text),
		Vocab:        tok.Vocab(),
	}
	if counter != nil {
		n := counter.CountTokens(text)
		out.BPETokens = &n
	}
	return out
}
