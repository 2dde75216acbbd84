package kovi

import "strings"

// cq parse/render states, mirroring original_source/src/bot/message.rs's
// cq_to_arr_inner four-state machine.
const (
	cqStateText = iota
	cqStateType
	cqStateKey
	cqStateValue
)

// ParseCQ decodes a flat CQ string into a Message. The grammar is a 4-state
// machine: outside a code (plain text), reading the type after "[CQ:",
// reading a key, and reading a value; "," separates key=value pairs inside a
// code and "]" closes it. The four-character escapes &#91; &#93; &#44; &amp;
// decode to [ ] , & respectively in every state.
func ParseCQ(s string) (Message, error) {
	var msg Message
	var textBuf strings.Builder
	var typeBuf strings.Builder
	var keyBuf strings.Builder
	var valBuf strings.Builder
	data := map[string]any{}

	state := cqStateText
	runes := []rune(s)
	i := 0
	flushText := func() {
		if textBuf.Len() > 0 {
			msg = append(msg, TextSegment(textBuf.String()))
			textBuf.Reset()
		}
	}
	finishSegment := func() {
		if valBuf.Len() > 0 || keyBuf.Len() > 0 {
			data[keyBuf.String()] = valBuf.String()
			keyBuf.Reset()
			valBuf.Reset()
		}
		msg = append(msg, Segment{Type: typeBuf.String(), Data: data})
		typeBuf.Reset()
		data = map[string]any{}
		state = cqStateText
	}

	for i < len(runes) {
		r := runes[i]

		// Escapes are valid in every state. The three numeric entities carry
		// a trailing ';' (5 runes total, matching original_source's
		// message.rs ['&','#','9','1',';'] comparison and cqEscaper's own
		// output below) — &#91 without the semicolon is not a valid escape.
		if r == '&' && i+5 <= len(runes) {
			esc := string(runes[i : i+5])
			var lit rune
			matched := true
			switch esc {
			case "&#91;":
				lit = '['
			case "&#93;":
				lit = ']'
			case "&#44;":
				lit = ','
			default:
				matched = false
			}
			if matched {
				switch state {
				case cqStateText:
					textBuf.WriteRune(lit)
				case cqStateType:
					typeBuf.WriteRune(lit)
				case cqStateKey:
					keyBuf.WriteRune(lit)
				case cqStateValue:
					valBuf.WriteRune(lit)
				}
				i += 5
				continue
			}
		}
		if r == '&' && i+5 <= len(runes) && string(runes[i:i+5]) == "&amp;" {
			switch state {
			case cqStateText:
				textBuf.WriteRune('&')
			case cqStateType:
				typeBuf.WriteRune('&')
			case cqStateKey:
				keyBuf.WriteRune('&')
			case cqStateValue:
				valBuf.WriteRune('&')
			}
			i += 5
			continue
		}

		switch state {
		case cqStateText:
			if r == '[' && i+4 <= len(runes) && string(runes[i:i+4]) == "[CQ:" {
				flushText()
				state = cqStateType
				i += 4
				continue
			}
			textBuf.WriteRune(r)
			i++

		case cqStateType:
			switch r {
			case ',':
				state = cqStateKey
			case ']':
				finishSegment()
			default:
				typeBuf.WriteRune(r)
			}
			i++

		case cqStateKey:
			switch r {
			case '=':
				state = cqStateValue
			case ']':
				finishSegment()
			default:
				keyBuf.WriteRune(r)
			}
			i++

		case cqStateValue:
			switch r {
			case ',':
				data[keyBuf.String()] = valBuf.String()
				keyBuf.Reset()
				valBuf.Reset()
				state = cqStateKey
			case ']':
				finishSegment()
			default:
				valBuf.WriteRune(r)
			}
			i++
		}
	}
	flushText()
	return msg, nil
}

var cqEscaper = strings.NewReplacer(
	"&", "&amp;",
	"[", "&#91;",
	"]", "&#93;",
	",", "&#44;",
)

// RenderCQ is the inverse of ParseCQ: renders a Message back to its flat CQ
// string form. Text segments are escaped verbatim; every other segment
// becomes "[CQ:<type>,key=value,...]" or "[CQ:<type>]" if it carries no
// string-valued keys.
func RenderCQ(m Message) string {
	var b strings.Builder
	for _, seg := range m {
		b.WriteString(renderCQSegment(seg))
	}
	return b.String()
}

func renderCQSegment(seg Segment) string {
	if seg.Type == "text" {
		if t, ok := seg.Data["text"].(string); ok {
			return cqEscaper.Replace(t)
		}
		return ""
	}
	var parts []string
	for k, v := range seg.Data {
		if s, ok := v.(string); ok {
			parts = append(parts, k+"="+cqEscaper.Replace(s))
		}
	}
	if len(parts) == 0 {
		return "[CQ:" + seg.Type + "]"
	}
	return "[CQ:" + seg.Type + "," + strings.Join(parts, ",") + "]"
}
