// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubtator fetches entity annotations for documents from the
// PubTator export API and extracts gene identifiers, gene names, and
// passage text from them.
package pubtator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/pubenrich/internal/httputil"
)

// DefaultBaseURL is the PubTator3 publications endpoint.
const DefaultBaseURL = "https://www.ncbi.nlm.nih.gov/research/pubtator3-api/publications"

// DefaultBatch is the number of document IDs per export request.
const DefaultBatch = 50

// Document is one exported BioC document.
type Document struct {
	ID       json.RawMessage `json:"id"`
	Passages []Passage       `json:"passages"`
}

// DocumentID returns the trimmed document identifier, accepting either a
// JSON string or number. It returns "" when the id is absent.
func (d Document) DocumentID() string {
	return rawString(d.ID)
}

// Passage is a section of a document (title, abstract, ...).
type Passage struct {
	Infons      map[string]json.RawMessage `json:"infons"`
	Text        string                     `json:"text"`
	Annotations []Annotation               `json:"annotations"`
}

// Annotation is one entity mention.
type Annotation struct {
	Text   string                     `json:"text"`
	Infons map[string]json.RawMessage `json:"infons"`
}

func (a Annotation) infon(key string) string {
	return rawString(a.Infons[key])
}

// exportResponse covers the shapes the export endpoint has returned over
// time: {"PubTator3": [...]}, a bare array, or {"documents": [...]}.
type exportResponse struct {
	PubTator3 []Document `json:"PubTator3"`
	Documents []Document `json:"documents"`
}

// Client fetches annotation exports.
type Client struct {
	HTTP    *httputil.Client
	BaseURL string
}

// NewClient returns a client against baseURL, or DefaultBaseURL when empty.
func NewClient(c *httputil.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{HTTP: c, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Fetch requests annotations for all pmids in a single call.
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]Document, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	reqURL := c.BaseURL + "/export/biocjson?pmids=" + url.QueryEscape(strings.Join(pmids, ","))

	var raw json.RawMessage
	if err := c.HTTP.GetJSON(ctx, reqURL, &raw); err != nil {
		return nil, fmt.Errorf("fetching annotations: %w", err)
	}
	return decodeExport(raw)
}

func decodeExport(raw json.RawMessage) ([]Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var docs []Document
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("parsing annotation export: %w", err)
		}
		return docs, nil
	}
	var resp exportResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing annotation export: %w", err)
	}
	if len(resp.PubTator3) > 0 {
		return resp.PubTator3, nil
	}
	return resp.Documents, nil
}

// Genes is the per-document output of ExtractGenes.
type Genes struct {
	DocumentID string

	// RawIDs are identifier tokens as found in annotations, split on ";" and ",".
	RawIDs []string

	// IDs are RawIDs after NormalizeGeneIDs.
	IDs []string

	// Names are gene mentions as they appear in the text.
	Names []string
}

// ExtractGenes collects gene identifiers and names from every Gene
// annotation in doc. All slices are sorted and deduplicated. ok is false
// when the document has no id.
func ExtractGenes(doc Document) (g Genes, ok bool) {
	g.DocumentID = doc.DocumentID()
	if g.DocumentID == "" {
		return Genes{}, false
	}

	rawIDs := map[string]struct{}{}
	names := map[string]struct{}{}
	for _, p := range doc.Passages {
		for _, a := range p.Annotations {
			if a.infon("type") != "Gene" {
				continue
			}
			ident := a.infon("identifier")
			if ident == "" {
				ident = a.infon("normalized_id")
			}
			for _, part := range strings.FieldsFunc(ident, func(r rune) bool { return r == ';' || r == ',' }) {
				if part = strings.TrimSpace(part); part != "" {
					rawIDs[part] = struct{}{}
				}
			}

			name := a.infon("name")
			if name == "" {
				name = a.Text
			}
			if name = strings.TrimSpace(name); name != "" {
				names[name] = struct{}{}
			}
		}
	}

	g.RawIDs = sortedKeys(rawIDs)
	g.IDs = NormalizeGeneIDs(g.RawIDs)
	g.Names = sortedKeys(names)
	return g, true
}

// ExtractText returns the title and abstract passages of doc.
func ExtractText(doc Document) (title, abstract string) {
	for _, p := range doc.Passages {
		switch rawString(p.Infons["type"]) {
		case "title", "front":
			if title == "" {
				title = strings.TrimSpace(p.Text)
			}
		case "abstract":
			if abstract == "" {
				abstract = strings.TrimSpace(p.Text)
			}
		}
	}
	return title, abstract
}

// NormalizeGeneIDs reduces mixed-namespace identifier strings to numeric
// gene IDs. Each input is split on "|", ";" and ","; a "geneid:" prefix is
// stripped case-insensitively; a token with ":" keeps its all-digit tail.
// Only all-digit tokens survive. The result is sorted and deduplicated.
func NormalizeGeneIDs(ids []string) []string {
	seen := map[string]struct{}{}
	for _, id := range ids {
		parts := strings.FieldsFunc(id, func(r rune) bool { return r == '|' || r == ';' || r == ',' })
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.HasPrefix(strings.ToLower(part), "geneid:") {
				part = strings.TrimSpace(part[len("geneid:"):])
			}
			if i := strings.LastIndex(part, ":"); i >= 0 {
				if tail := strings.TrimSpace(part[i+1:]); isDigits(tail) {
					part = tail
				}
			}
			if isDigits(part) {
				seen[part] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// rawString renders a JSON string or number as trimmed text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
