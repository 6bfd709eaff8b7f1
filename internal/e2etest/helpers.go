package e2etest

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// findLabeled returns the element matched by selector that belongs to the label with labelText, either through the
// label's for attribute or by nesting.
func findLabeled(form *goquery.Selection, labelText, selector string) (*goquery.Selection, error) {
	label := form.Find(fmt.Sprintf("label:contains(%s)", labelText))
	if label.Length() == 0 {
		return nil, fmt.Errorf("label not found: %s", labelText)
	}
	if id, ok := label.Attr("for"); ok {
		return form.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("id", "") == id
		}), nil
	}
	return label.Find(selector), nil
}

// FindInputForLabel finds the input, textarea or select element associated with a label in the given form.
func FindInputForLabel(form *goquery.Selection, labelText string) (*goquery.Selection, error) {
	input, err := findLabeled(form, labelText, "input,textarea,select")
	if err != nil {
		return nil, err
	}
	if input.Length() == 0 {
		return nil, fmt.Errorf("input not found for label: %s", labelText)
	}
	return input, nil
}

// FindSelectForLabel finds the select element associated with a label in the given form.
func FindSelectForLabel(form *goquery.Selection, labelText string) (*goquery.Selection, error) {
	sel, err := findLabeled(form, labelText, "select")
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return nil, fmt.Errorf("select element not found for label: %s", labelText)
	}
	return sel, nil
}

// FindForm finds a form in the doc identified with action formActionURLPath and returns the form selection.
func FindForm(doc *goquery.Document, formActionURLPath string) (*goquery.Selection, error) {
	form := doc.Find(fmt.Sprintf("form[action='%s']", formActionURLPath))
	if form.Length() == 0 {
		return nil, fmt.Errorf("form not found: %s", formActionURLPath)
	}
	return form, nil
}
