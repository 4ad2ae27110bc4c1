package llm

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
)

// Placeholder marks where the document text goes in a prompt template.
const Placeholder = "[PDF TEXT WILL BE INSERTED HERE]"

const truncationMarker = "\n[... document truncated ...]"

// DefaultTemplate is used when no prompt file is configured.
const DefaultTemplate = `You read cab booking documents and extract every trip they describe.

Return a JSON array with one object per trip. Use these keys:
- "date": the trip date, YYYY-MM-DD when it can be determined
- "inward_from", "inward_to": pickup and drop of the trip towards the office
- "outward_from", "outward_to": pickup and drop of the return trip
- "visits": number of visits as an integer, 1 when not stated
- "vendor": the cab company
- "inward_charges", "outward_charges": fares as plain numbers without currency symbols

Leave a key out when the document does not mention it. Do not invent trips.

Document text:
` + Placeholder + `
`

// Template renders the prompt for one document. It is shared read-only by all workers.
type Template struct {
	text     string
	maxChars int
}

// NewTemplate wraps text; an empty text selects DefaultTemplate. maxChars <= 0 disables truncation.
func NewTemplate(text string, maxChars int) *Template {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	return &Template{text: text, maxChars: maxChars}
}

// LoadTemplate reads a prompt file. An empty path selects DefaultTemplate.
func LoadTemplate(path string, maxChars int) (*Template, error) {
	if path == "" {
		return NewTemplate("", maxChars), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError(common.KindConfig, "read prompt template "+path, err)
	}
	return NewTemplate(string(b), maxChars), nil
}

// Render substitutes the document text into the template. With reformulate set,
// a strict output contract is appended for the retry after a malformed response.
func (t *Template) Render(text string, reformulate bool) string {
	text = t.truncate(strings.TrimSpace(text))

	var out string
	if strings.Contains(t.text, Placeholder) {
		out = strings.ReplaceAll(t.text, Placeholder, text)
	} else {
		out = strings.TrimRight(t.text, "\n") + "\n\nDocument text:\n" + text + "\n"
	}
	if reformulate {
		out += "\n" + outputContract()
	}
	return out
}

func (t *Template) truncate(s string) string {
	if t.maxChars <= 0 || utf8.RuneCountInString(s) <= t.maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == t.maxChars {
			return s[:i] + truncationMarker
		}
		n++
	}
	return s
}

func outputContract() string {
	var b strings.Builder
	b.WriteString("IMPORTANT: your previous answer could not be read. Reply with JSON only, no prose and no code fences.\n")
	b.WriteString("The reply must be a JSON array of trip objects. Allowed keys, all with string values: ")
	b.WriteString(strings.Join(constants.BookingFields(), ", "))
	b.WriteString(".\n")
	b.WriteString(`Every object must have a non-empty "date" and a non-empty "inward_from" or "outward_from". `)
	b.WriteString(`"visits" is digits only; charges are plain decimals such as "250.00". Reply [] if there are no trips.`)
	b.WriteString("\n")
	return b.String()
}
