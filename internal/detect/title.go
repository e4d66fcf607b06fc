package detect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	chapterPrefix = regexp.MustCompile(`(?i)^chapter[ \t]+([0-9]{1,3}|[ivxlcdm]+|[a-z]+)\b[ \t]*(?:[:.\-–—][ \t]*)?(.*)$`)
	numberedTitle = regexp.MustCompile(`^([0-9]{1,3})[.)][ \t]+(.+)$`)
	romanNumeral  = regexp.MustCompile(`(?i)^m{0,3}(?:cm|cd|d?c{0,3})(?:xc|xl|l?x{0,3})(?:ix|iv|v?i{0,3})$`)
	inlineLink    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

// NormalizeTitle cleans a raw heading and rewrites recognized chapter
// numbering into "Chapter N: Rest". It returns the chapter number, or 0
// when the title carries none.
func NormalizeTitle(raw string) (string, int) {
	title := cleanTitle(raw)
	if title == "" {
		return "", 0
	}

	if m := chapterPrefix.FindStringSubmatch(title); m != nil {
		if n, ok := parseNumber(m[1]); ok {
			return chapterTitle(n, m[2]), n
		}
	}
	if m := numberedTitle.FindStringSubmatch(title); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return chapterTitle(n, m[2]), n
		}
	}
	return title, 0
}

func chapterTitle(n int, rest string) string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return fmt.Sprintf("Chapter %d", n)
	}
	return fmt.Sprintf("Chapter %d: %s", n, rest)
}

// cleanTitle strips inline markup and collapses whitespace.
func cleanTitle(raw string) string {
	s := inlineLink.ReplaceAllString(raw, "$1")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, "*_ ")
}

// parseNumber reads arabic digits, a Roman numeral or a spelled-out number.
func parseNumber(tok string) (int, bool) {
	if n, err := strconv.Atoi(tok); err == nil {
		return n, n > 0
	}
	lower := strings.ToLower(tok)
	if n, ok := numberWords[lower]; ok {
		return n, true
	}
	// Roman numerals are written in one case, so "Mix" stays a word.
	if len(tok) > 7 || (tok != lower && tok != strings.ToUpper(tok)) || !romanNumeral.MatchString(lower) {
		return 0, false
	}
	if n := parseRoman(lower); n > 0 && n < 1000 {
		return n, true
	}
	return 0, false
}

func parseRoman(s string) int {
	values := map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	total := 0
	for i := 0; i < len(s); i++ {
		v := values[s[i]]
		if i+1 < len(s) && values[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total
}
