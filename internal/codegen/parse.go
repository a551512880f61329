package codegen

import (
	"regexp"
	"strings"

	"github.com/exponent-ml/exponent/internal/domain"
)

var codeBlockPattern = regexp.MustCompile("(?s)```([^\\n`]*)\\n(.*?)```")

// expectedFiles, in the order the generation prompt asks for them. Blocks
// labeled only with a language are assigned to the next unfilled slot.
var expectedFiles = []string{
	domain.FileModel,
	domain.FileTrain,
	domain.FilePredict,
	domain.FileRequirements,
}

// ExtractFiles pulls labeled markdown code blocks out of a model response
// and maps them onto the expected artifact names. Labels may be exact file
// names (preferred per the prompt), file names with a language prefix
// ("python model.py"), or bare languages from less cooperative models.
func ExtractFiles(content string) domain.GeneratedFiles {
	files := make(domain.GeneratedFiles)

	assignNext := func(code string, pythonOnly bool) {
		for _, name := range expectedFiles {
			if files[name] != "" {
				continue
			}
			if pythonOnly && name == domain.FileRequirements {
				continue
			}
			files[name] = code
			return
		}
	}

	for _, m := range codeBlockPattern.FindAllStringSubmatch(content, -1) {
		label := strings.TrimSpace(strings.ToLower(m[1]))
		code := strings.TrimSpace(m[2])
		if code == "" {
			continue
		}

		if name := matchFileName(label); name != "" {
			if files[name] == "" {
				files[name] = code
			}
			continue
		}

		switch label {
		case "python", "py":
			assignNext(code, true)
		case "txt", "text", "requirements":
			if files[domain.FileRequirements] == "" {
				files[domain.FileRequirements] = code
			}
		case "":
			assignNext(code, false)
		}
	}
	return files
}

// matchFileName finds an expected file name anywhere in the block label,
// covering labels like "python model.py" or "# train.py".
func matchFileName(label string) string {
	for _, name := range expectedFiles {
		if strings.Contains(label, name) {
			return name
		}
	}
	return ""
}
