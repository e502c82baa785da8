package syntax

import "github.com/posixsh/posh/token"

// parseParamExpBody parses the text between `${` and `}` (already
// extracted by the lexer via a balanced scan) into a ParamExp. body
// never itself contains the outer braces.
func parseParamExpBody(body string, dollar, lbrace token.Pos) (*ParamExp, error) {
	pe := &ParamExp{Dollar: dollar}
	i := 0
	n := len(body)
	base := lbrace + 1 // position of body[0] in the outer source

	indirect := false
	if i < n && body[i] == '!' {
		indirect = true
		i++
	}

	// `${#name}` / `${#arr[@]}`: a leading `#` means "length of", unless
	// the name is literally "#" (the positional-parameter count).
	length := false
	if !indirect && i < n && body[i] == '#' && n > 1 {
		length = true
		i++
	}

	nameStart := i
	if i < n && (isDigit(rune(body[i])) || isSpecialParamChar(rune(body[i]))) {
		i++
	} else {
		for i < n && isNameCont(rune(body[i])) {
			i++
		}
	}
	pe.Name = body[nameStart:i]

	if i < n && body[i] == '[' {
		end := indexMatchingBracket(body, i+1)
		if end < 0 {
			end = n
		}
		idxPieces, err := parsePiecesFrom(body[i+1:end], base+token.Pos(i+1), false)
		if err == nil {
			pe.Index = &Word{Pieces: idxPieces}
		}
		i = end + 1
	}

	switch {
	case indirect:
		if i == n {
			pe.Op = ParamIndirect
			return pe, nil
		}
		if i < n && (body[i] == '*' || body[i] == '@') && i == n-1 {
			pe.Op = ParamNamesPrefix
			pe.NamesAll = body[i] == '@'
			return pe, nil
		}
		// ${!arr[@]} / ${!arr[*]} key enumeration is represented via Index
		// on an otherwise-indirect expansion.
		pe.Op = ParamIndirect
		return pe, nil
	case length:
		pe.Op = ParamLength
		return pe, nil
	}

	if i == n {
		pe.Op = ParamPlain
		return pe, nil
	}

	rest := body[i:]
	restPos := base + token.Pos(i)
	return parseParamOp(pe, rest, restPos)
}

func parseParamOp(pe *ParamExp, rest string, pos token.Pos) (*ParamExp, error) {
	word := func(s string, at token.Pos) (*Word, error) {
		pieces, err := parsePiecesFrom(s, at, false)
		if err != nil {
			return nil, err
		}
		return &Word{Pieces: pieces}, nil
	}

	c := rest[0]
	switch c {
	case ':':
		if len(rest) > 1 {
			switch rest[1] {
			case '-':
				pe.Op = ParamDefault
				return finishArgOp(pe, rest[2:], pos+2, word)
			case '=':
				pe.Op = ParamAssign
				return finishArgOp(pe, rest[2:], pos+2, word)
			case '?':
				pe.Op = ParamError
				return finishArgOp(pe, rest[2:], pos+2, word)
			case '+':
				pe.Op = ParamAlt
				return finishArgOp(pe, rest[2:], pos+2, word)
			}
		}
		pe.Op = ParamSlice
		return finishSlice(pe, rest[1:], pos+1)
	case '-':
		pe.Op = ParamDefaultUnset
		return finishArgOp(pe, rest[1:], pos+1, word)
	case '=':
		pe.Op = ParamAssignUnset
		return finishArgOp(pe, rest[1:], pos+1, word)
	case '?':
		pe.Op = ParamErrorUnset
		return finishArgOp(pe, rest[1:], pos+1, word)
	case '+':
		pe.Op = ParamAltUnset
		return finishArgOp(pe, rest[1:], pos+1, word)
	case '#':
		if len(rest) > 1 && rest[1] == '#' {
			pe.Op = ParamRemLargePrefix
			return finishArgOp(pe, rest[2:], pos+2, word)
		}
		pe.Op = ParamRemSmallPrefix
		return finishArgOp(pe, rest[1:], pos+1, word)
	case '%':
		if len(rest) > 1 && rest[1] == '%' {
			pe.Op = ParamRemLargeSuffix
			return finishArgOp(pe, rest[2:], pos+2, word)
		}
		pe.Op = ParamRemSmallSuffix
		return finishArgOp(pe, rest[1:], pos+1, word)
	case '/':
		body := rest[1:]
		at := pos + 1
		switch {
		case len(body) > 0 && body[0] == '/':
			pe.Op = ParamReplaceAll
			body, at = body[1:], at+1
		case len(body) > 0 && body[0] == '#':
			pe.Op = ParamReplacePrefix
			body, at = body[1:], at+1
		case len(body) > 0 && body[0] == '%':
			pe.Op = ParamReplaceSuffix
			body, at = body[1:], at+1
		default:
			pe.Op = ParamReplaceOnce
		}
		from, to := splitUnescaped(body, '/')
		var err error
		if pe.ReplFrom, err = word(from, at); err != nil {
			return nil, err
		}
		if to != nil {
			toAt := at + token.Pos(len(from)) + 1
			if pe.ReplTo, err = word(*to, toAt); err != nil {
				return nil, err
			}
		}
		return pe, nil
	case '^':
		if len(rest) > 1 && rest[1] == '^' {
			pe.Op = ParamCaseUpperAll
		} else {
			pe.Op = ParamCaseUpperFirst
		}
		adv := 1
		if pe.Op == ParamCaseUpperAll {
			adv = 2
		}
		return finishArgOp(pe, rest[adv:], pos+token.Pos(adv), word)
	case ',':
		if len(rest) > 1 && rest[1] == ',' {
			pe.Op = ParamCaseLowerAll
		} else {
			pe.Op = ParamCaseLowerFirst
		}
		adv := 1
		if pe.Op == ParamCaseLowerAll {
			adv = 2
		}
		return finishArgOp(pe, rest[adv:], pos+token.Pos(adv), word)
	case '@':
		if len(rest) > 1 {
			pe.Op = ParamTransform
			pe.Transform = rest[1]
		}
		return pe, nil
	}
	pe.Op = ParamPlain
	return pe, nil
}

func finishArgOp(pe *ParamExp, s string, at token.Pos, word func(string, token.Pos) (*Word, error)) (*ParamExp, error) {
	if s == "" {
		return pe, nil
	}
	w, err := word(s, at)
	if err != nil {
		return nil, err
	}
	pe.Arg = w
	return pe, nil
}

func finishSlice(pe *ParamExp, s string, at token.Pos) (*ParamExp, error) {
	offStr, lenStr := splitUnescaped(s, ':')
	if x, err := ParseArith(offStr, at); err == nil {
		pe.SliceOff = x
	}
	if lenStr != nil {
		lenAt := at + token.Pos(len(offStr)) + 1
		if x, err := ParseArith(*lenStr, lenAt); err == nil {
			pe.SliceLen = x
		}
	}
	return pe, nil
}

// splitUnescaped splits s at the first unescaped occurrence of sep,
// returning the tail as nil when sep never appears.
func splitUnescaped(s string, sep byte) (string, *string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{', '(':
			depth++
		case '}', ')':
			if depth > 0 {
				depth--
			}
		default:
			if s[i] == sep && depth == 0 {
				tail := s[i+1:]
				return s[:i], &tail
			}
		}
	}
	return s, nil
}

// splitAssignmentPrefix recognises the `name=`, `name+=`, `name[idx]=`
// and `name[idx]+=` prefixes the grammar treats as assignment-words. It
// only looks at a literal run of text, which is the common case; an
// array index built from an expansion (`arr[$i]=v`) is not recognised
// here, matching the scope this parser covers.
func splitAssignmentPrefix(s string) (name, index string, appnd bool, rest string, ok bool) {
	i := 0
	if i >= len(s) || !isNameStart(rune(s[i])) {
		return "", "", false, "", false
	}
	start := i
	for i < len(s) && isNameCont(rune(s[i])) {
		i++
	}
	name = s[start:i]
	if i < len(s) && s[i] == '[' {
		end := indexMatchingBracket(s, i+1)
		if end < 0 {
			return "", "", false, "", false
		}
		index = s[i+1 : end]
		i = end + 1
	}
	switch {
	case i+1 < len(s) && s[i] == '+' && s[i+1] == '=':
		appnd = true
		i += 2
	case i < len(s) && s[i] == '=':
		i++
	default:
		return "", "", false, "", false
	}
	rest = s[i:]
	return name, index, appnd, rest, true
}

func indexMatchingBracket(s string, start int) int {
	depth := 1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
