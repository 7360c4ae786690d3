package encoder

import "strings"

// SplitArgs tokenizes hand-edited argument text with shell-like rules:
// whitespace separates tokens, single quotes are literal, double quotes
// allow \" \\ \$ and \` escapes, and a bare backslash escapes the next byte.
//
// Malformed text never fails. When a quote is left open, the unterminated
// token and the rest of the text are split on whitespace with the stray
// quote dropped, and exact is false.
func SplitArgs(s string) (tokens []string, exact bool) {
	const (
		plain = iota
		single
		double
	)
	var (
		cur        strings.Builder
		inToken    bool
		state      = plain
		tokenStart int
		quoteAt    int
	)
	emit := func() {
		if inToken {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		inToken = false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case plain:
			switch c {
			case ' ', '\t', '\n', '\r':
				emit()
				continue
			}
			if !inToken {
				tokenStart = i
				inToken = true
			}
			switch c {
			case '\'':
				state, quoteAt = single, i
			case '"':
				state, quoteAt = double, i
			case '\\':
				if i+1 < len(s) {
					i++
					cur.WriteByte(s[i])
				} else {
					cur.WriteByte(c)
				}
			default:
				cur.WriteByte(c)
			}
		case single:
			if c == '\'' {
				state = plain
			} else {
				cur.WriteByte(c)
			}
		case double:
			switch {
			case c == '"':
				state = plain
			case c == '\\' && i+1 < len(s) && strings.IndexByte("\"\\$`", s[i+1]) >= 0:
				i++
				cur.WriteByte(s[i])
			default:
				cur.WriteByte(c)
			}
		}
	}

	if state != plain {
		rest := s[tokenStart:quoteAt] + s[quoteAt+1:]
		return append(tokens, strings.Fields(rest)...), false
	}
	emit()
	return tokens, true
}

const shellSpecial = " \t\n\r\"'\\$`(){}[]*&;|<>?!#~"

// QuoteArgs renders tokens as a shell-reproducible command line for display
// and copying. Tokens containing shell metacharacters are double-quoted.
// Execution never goes through this string.
func QuoteArgs(tokens []string) string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = quoteArg(t)
	}
	return strings.Join(out, " ")
}

func quoteArg(t string) string {
	if t == "" {
		return `""`
	}
	if !strings.ContainsAny(t, shellSpecial) {
		return t
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")
	return `"` + r.Replace(t) + `"`
}
