package heuristic

import "strings"

var sectionHeaders = map[string]string{
	"summary":                     "summary",
	"professional summary":        "summary",
	"profile":                     "summary",
	"objective":                   "summary",
	"about me":                    "summary",
	"skills":                      "skills",
	"technical skills":            "skills",
	"key skills":                  "skills",
	"core competencies":           "skills",
	"experience":                  "experience",
	"work experience":             "experience",
	"professional experience":     "experience",
	"employment history":          "experience",
	"work history":                "experience",
	"education":                   "education",
	"academic background":         "education",
	"projects":                    "projects",
	"personal projects":           "projects",
	"certifications":              "certifications",
	"certificates":                "certifications",
	"licenses and certifications": "certifications",
}

// splitSections assigns every line after a recognised header line to that
// section until the next header. Text before the first header is dropped.
func splitSections(text string) map[string]string {
	sections := map[string]string{}
	current := ""
	var body []string

	flush := func() {
		if current == "" {
			return
		}
		joined := strings.Join(strings.Fields(strings.Join(body, " ")), " ")
		if prev, ok := sections[current]; ok && prev != "" {
			joined = strings.TrimSpace(prev + " " + joined)
		}
		sections[current] = joined
	}

	for _, line := range strings.Split(text, "\n") {
		if name, ok := headerName(line); ok {
			flush()
			current = name
			body = body[:0]
			continue
		}
		if current != "" {
			body = append(body, line)
		}
	}
	flush()

	if len(sections) == 0 {
		return nil
	}
	return sections
}

func headerName(line string) (string, bool) {
	key := normalizeTerm(strings.TrimRight(strings.TrimSpace(line), ":"))
	if key == "" || len(key) > 40 {
		return "", false
	}
	name, ok := sectionHeaders[key]
	return name, ok
}
