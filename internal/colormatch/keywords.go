package colormatch

import (
	"bufio"
	_ "embed"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed keywords.txt
var keywordData string

type keyword struct {
	tokens []string
	prefix bool // last token matches by prefix
	hex    string
	weight int
}

var keywordTable = loadKeywords(keywordData)

func loadKeywords(data string) []keyword {
	var table []keyword
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		key, hex, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		h, err := NormalizeHex(strings.TrimSpace(hex))
		if err != nil {
			continue
		}
		kw := keyword{hex: h, weight: len(key)}
		if strings.HasSuffix(key, "*") {
			kw.prefix = true
			key = strings.TrimSuffix(key, "*")
		}
		kw.tokens = Tokens(key)
		if len(kw.tokens) == 0 {
			continue
		}
		table = append(table, kw)
	}
	sort.SliceStable(table, func(i, j int) bool { return table[i].weight > table[j].weight })
	return table
}

// Fold lower-cases s and strips diacritics ("Açaí Vermelho" -> "acai vermelho").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokens splits folded text into letter/digit words.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HasToken reports whether any word of text equals one of words.
func HasToken(text string, words ...string) bool {
	for _, tok := range Tokens(text) {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

// HexForName guesses a colour from the colour words in a product name
// ("Azul Marinho Fosco" -> #000080: the longest matching keyword wins).
// ok is false when no keyword matched.
func HexForName(name string) (hex string, ok bool) {
	toks := Tokens(name)
	for _, kw := range keywordTable {
		if kw.matches(toks) {
			return kw.hex, true
		}
	}
	return "", false
}

// HexForNameOrNeutral is HexForName with the neutral gray fallback.
func HexForNameOrNeutral(name string) string {
	if hex, ok := HexForName(name); ok {
		return hex
	}
	return NeutralHex
}

func (kw keyword) matches(toks []string) bool {
	n := len(kw.tokens)
	for i := 0; i+n <= len(toks); i++ {
		hit := true
		for j, want := range kw.tokens {
			got := toks[i+j]
			if j == n-1 && kw.prefix {
				if !strings.HasPrefix(got, want) {
					hit = false
				}
			} else if got != want {
				hit = false
			}
			if !hit {
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}
