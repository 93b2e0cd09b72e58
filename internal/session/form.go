package session

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// formRequest is the request a form submission produces
type formRequest struct {
	method string
	target *url.URL
	values url.Values
}

// isSubmitter reports whether the selection is a control that submits its form
func isSubmitter(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "button":
		t := strings.ToLower(s.AttrOr("type", "submit"))
		return t == "submit"
	case "input":
		t := strings.ToLower(s.AttrOr("type", ""))
		return t == "submit" || t == "image"
	}
	return false
}

// enclosingForm returns the form element of s (s itself when it is a form)
func enclosingForm(s *goquery.Selection) *goquery.Selection {
	if goquery.NodeName(s) == "form" {
		return s
	}
	return s.Closest("form")
}

// buildFormRequest collects the successful controls of form. When submitter is
// set, its own name/value pair is included as a browser would.
func buildFormRequest(base *url.URL, form, submitter *goquery.Selection) (*formRequest, error) {
	method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", http.MethodGet)))
	if method != http.MethodPost {
		method = http.MethodGet
	}

	target := base
	if action := strings.TrimSpace(form.AttrOr("action", "")); action != "" {
		ref, err := url.Parse(action)
		if err != nil {
			return nil, err
		}
		target = base.ResolveReference(ref)
	}

	values := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(s) {
		case "input":
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "submit", "image", "button", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); !checked {
					return
				}
				values.Add(name, s.AttrOr("value", "on"))
			default:
				values.Add(name, s.AttrOr("value", ""))
			}
		case "textarea":
			values.Add(name, s.Text())
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			if opt.Length() > 0 {
				values.Add(name, opt.AttrOr("value", collapse(opt.Text())))
			}
		}
	})

	if submitter != nil && isSubmitter(submitter) {
		if name, ok := submitter.Attr("name"); ok && name != "" {
			values.Add(name, submitter.AttrOr("value", ""))
		}
	}

	return &formRequest{method: method, target: target, values: values}, nil
}
