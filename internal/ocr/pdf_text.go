package ocr

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/tsawler/tabula"
)

// readTextLayer pulls the embedded text of all pages, in reading order.
func readTextLayer(path string) (string, []string, error) {
	text, warnings, err := tabula.Open(path).Text()
	if err != nil {
		return "", nil, err
	}
	var out []string
	for _, w := range warnings {
		out = append(out, fmt.Sprint(w))
	}
	return text, out, nil
}

func countPages(path string) (int, error) {
	return api.PageCountFile(path)
}
