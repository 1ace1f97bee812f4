package delimited

// CountPattern counts non-overlapping literal occurrences of pattern in text.
// No character in pattern is special.
//
// An occurrence preceded by an odd number of consecutive escape strings is
// escaped and not counted; an even run escapes only itself. An empty escape,
// or one equal to pattern, disables that rule so doubled enclosures count
// twice.
func CountPattern(text, pattern, escape string) int {
	if pattern == "" {
		return 0
	}
	useEscape := escape != "" && escape != pattern

	n := 0
	for i := 0; i+len(pattern) <= len(text); {
		if text[i:i+len(pattern)] != pattern {
			i++
			continue
		}
		if !useEscape || !escapedAt(text, i, escape) {
			n++
		}
		i += len(pattern)
	}
	return n
}

func escapedAt(text string, i int, escape string) bool {
	run := 0
	for j := i; j >= len(escape) && text[j-len(escape):j] == escape; j -= len(escape) {
		run++
	}
	return run%2 == 1
}

// OpenEnclosure reports whether text ends inside an enclosed field, that is,
// whether it holds an odd number of unescaped enclosures.
func (t *Tokenizer) OpenEnclosure(text string) bool {
	if t.enc == "" {
		return false
	}
	return CountPattern(text, t.enc, t.esc)%2 == 1
}
