package pipeline

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/course-content-pipeline/internal/prompts"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Preset is a fixed, ordered subtask list together with the prompt text
// shared by every subtask. It is resolved before the first key is processed
// and never mutated during a run.
type Preset struct {
	Name     string
	Header   string // shared instruction header
	User     string // user message template, {{.Key}} is replaced by the key
	Footer   string // closing instruction appended to every system instruction
	Subtasks []types.SubtaskSpec
	Pad      map[string]any // baseline layered over every accepted record
}

// SystemInstruction builds the instruction for spec. extra is inserted after
// the shared header when non-empty.
func (p *Preset) SystemInstruction(spec types.SubtaskSpec, extra string) string {
	var sb strings.Builder
	sb.WriteString(p.Header)
	sb.WriteString(extra)
	sb.WriteString(spec.FormatHint)
	sb.WriteString(spec.Intro)
	sb.WriteString(p.Footer)
	return sb.String()
}

// Prompt builds the user message for key.
func (p *Preset) Prompt(key string) string {
	return prompts.Format(p.User, map[string]string{"Key": key})
}

// Validate checks that the preset can drive a run.
func (p *Preset) Validate() error {
	if len(p.Subtasks) == 0 {
		return &types.ConfigurationError{Field: "subtasks", Message: fmt.Sprintf("preset %q has no subtasks", p.Name)}
	}
	seen := make(map[string]bool, len(p.Subtasks))
	for _, spec := range p.Subtasks {
		if spec.Name == "" {
			return &types.ConfigurationError{Field: "subtasks", Message: "subtask name is required"}
		}
		if seen[spec.Name] {
			return &types.ConfigurationError{Field: "subtasks", Message: fmt.Sprintf("duplicate subtask %q", spec.Name)}
		}
		seen[spec.Name] = true
		if spec.Root == 0 {
			return &types.ConfigurationError{Field: "subtasks", Message: fmt.Sprintf("subtask %q has no kind", spec.Name)}
		}
		if len(spec.Fields) > 0 && spec.Root != types.KindObject {
			return &types.ConfigurationError{Field: "subtasks", Message: fmt.Sprintf("subtask %q declares fields but is not an object", spec.Name)}
		}
	}
	return nil
}

// SubtaskNames returns the subtask names in run order.
func (p *Preset) SubtaskNames() []string {
	names := make([]string, len(p.Subtasks))
	for i, spec := range p.Subtasks {
		names[i] = spec.Name
	}
	return names
}

// SubtaskDefinition names the prompt keys a built-in subtask is assembled from.
type SubtaskDefinition struct {
	Name      string
	FormatKey string
	IntroKey  string
	Root      types.Kind
	Fields    types.Shape
}

// PresetDefinition describes a built-in preset.
type PresetDefinition struct {
	Name       string
	PromptFile string
	Subtasks   []SubtaskDefinition
	Pad        func() map[string]any
}

// Built-in preset names.
const (
	PresetSEO      = "seo"
	PresetSyllabus = "syllabus"
	PresetLabel    = "label"
)

// PresetRegistry holds the built-in presets.
var PresetRegistry = map[string]PresetDefinition{
	PresetSEO: {
		Name:       PresetSEO,
		PromptFile: "seo.json",
		Subtasks: []SubtaskDefinition{
			{Name: "productUsingInCourse", FormatKey: "format_product_using", IntroKey: "intro_solver", Root: types.KindObject},
			{Name: "productUsingInCoursereading", FormatKey: "format_product_reading", IntroKey: "intro_reading", Root: types.KindObject},
			{Name: "productUsingInCoursetranscribe", FormatKey: "format_product_transcribe", IntroKey: "intro_transcribe", Root: types.KindObject},
			{Name: "FAQ", FormatKey: "format_faq", IntroKey: "intro_faq", Root: types.KindSequence},
		},
		Pad: CourseInfoPad,
	},
	PresetSyllabus: {
		Name:       PresetSyllabus,
		PromptFile: "syllabus.json",
		Subtasks: []SubtaskDefinition{
			{
				Name: "CourseInfo", FormatKey: "format_course_info", IntroKey: "intro_course_info", Root: types.KindObject,
				Fields: types.Shape{"courseBasicInfo": types.KindObject, "instructorInfo": types.KindObject, "assessmentAndGradingPolicy": types.KindObject},
			},
			{Name: "Qsolver", FormatKey: "format_qsolver", IntroKey: "intro_qsolver", Root: types.KindObject},
			{Name: "Reading", FormatKey: "format_reading", IntroKey: "intro_reading", Root: types.KindObject},
			{Name: "transcribe", FormatKey: "format_transcribe", IntroKey: "intro_transcribe", Root: types.KindObject},
		},
	},
	PresetLabel: {
		Name:       PresetLabel,
		PromptFile: "label.json",
		Subtasks: []SubtaskDefinition{
			{
				Name: "label", FormatKey: "format_label", IntroKey: "intro_label", Root: types.KindObject,
				Fields: types.Shape{"memory": types.KindScalar, "what to memory": types.KindObject},
			},
		},
	},
}

// PresetNames returns the built-in preset names, sorted.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(PresetRegistry))
}

// LoadPreset resolves a built-in preset and its prompt text.
func LoadPreset(name string) (*Preset, error) {
	def, ok := PresetRegistry[name]
	if !ok {
		return nil, &types.ConfigurationError{
			Field:   "preset",
			Message: fmt.Sprintf("unknown preset %q, available presets: %s", name, strings.Join(PresetNames(), ", ")),
		}
	}

	missing, err := missingPromptKeys(def)
	if err != nil {
		return nil, fmt.Errorf("failed to load preset %s: %w", name, err)
	}
	if len(missing) > 0 {
		return nil, &types.ConfigurationError{
			Field:   "preset." + name,
			Message: fmt.Sprintf("prompt file %s is missing keys: %s", def.PromptFile, strings.Join(missing, ", ")),
		}
	}

	header, err := prompts.Get(def.PromptFile, "system_header")
	if err != nil {
		return nil, fmt.Errorf("failed to load preset %s: %w", name, err)
	}
	user, err := prompts.Get(def.PromptFile, "user")
	if err != nil {
		return nil, fmt.Errorf("failed to load preset %s: %w", name, err)
	}
	footer, err := prompts.Get(def.PromptFile, "footer")
	if err != nil {
		return nil, fmt.Errorf("failed to load preset %s: %w", name, err)
	}

	preset := &Preset{Name: def.Name, Header: header, User: user, Footer: footer}
	for _, sub := range def.Subtasks {
		format, err := prompts.Get(def.PromptFile, sub.FormatKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load subtask %s: %w", sub.Name, err)
		}
		intro, err := prompts.Get(def.PromptFile, sub.IntroKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load subtask %s: %w", sub.Name, err)
		}
		preset.Subtasks = append(preset.Subtasks, types.SubtaskSpec{
			Name:       sub.Name,
			FormatHint: format,
			Intro:      intro,
			Root:       sub.Root,
			Fields:     sub.Fields,
		})
	}
	if def.Pad != nil {
		preset.Pad = def.Pad()
	}
	return preset, nil
}

// missingPromptKeys returns the prompt keys def needs that its prompt file
// does not define.
func missingPromptKeys(def PresetDefinition) ([]string, error) {
	available, err := prompts.List(def.PromptFile)
	if err != nil {
		return nil, err
	}
	required := []string{"system_header", "user", "footer"}
	for _, sub := range def.Subtasks {
		required = append(required, sub.FormatKey, sub.IntroKey)
	}

	var missing []string
	for _, key := range required {
		if _, found := slices.BinarySearch(available, key); !found {
			missing = append(missing, key)
		}
	}
	return missing, nil
}

// CourseInfoPad returns the blank course-info skeleton layered over SEO records.
func CourseInfoPad() map[string]any {
	blank := " "
	return map[string]any{
		"courseInfo": map[string]any{
			"courseBasicInfo": map[string]any{
				"courseTitle": blank,
				"school":      blank,
				"courseCode":  blank,
				"credits":     blank,
				"semester":    blank,
				"department":  blank,
			},
			"instructorInfo": map[string]any{
				"instructorName": blank,
				"titlePosition":  blank,
				"officeAddress":  blank,
				"officeHours":    blank,
				"contactInfo": map[string]any{
					"email": blank,
					"phone": blank,
				},
			},
			"assessmentAndGradingPolicy": map[string]any{
				"weightings": map[string]any{
					"assignments": blank,
					"quizzes":     blank,
					"midterm":     blank,
					"final":       blank,
					"projects":    blank,
					"attendance":  blank,
				},
				"assessmentMethods": []any{blank, blank},
			},
		},
	}
}

// presetFile is the YAML layout of a custom preset.
type presetFile struct {
	Name     string         `yaml:"name"`
	Header   string         `yaml:"header"`
	User     string         `yaml:"user"`
	Footer   string         `yaml:"footer"`
	Pad      map[string]any `yaml:"pad"`
	Subtasks []struct {
		Name   string            `yaml:"name"`
		Kind   string            `yaml:"kind"`
		Format string            `yaml:"format"`
		Intro  string            `yaml:"intro"`
		Fields map[string]string `yaml:"fields"`
	} `yaml:"subtasks"`
}

// LoadPresetFile reads a custom preset from YAML. Kinds must be one of the
// tags object, sequence or scalar. Missing header, user or footer text falls
// back to the seo preset's.
func LoadPresetFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file %s: %w", path, err)
	}

	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse preset file %s: %w", path, err)
	}

	preset := &Preset{
		Name:   pf.Name,
		Header: pf.Header,
		User:   pf.User,
		Footer: pf.Footer,
		Pad:    pf.Pad,
	}
	if preset.Name == "" {
		preset.Name = "custom"
	}
	if preset.Header == "" {
		preset.Header = prompts.MustGet("seo.json", "system_header")
	}
	if preset.User == "" {
		preset.User = prompts.MustGet("seo.json", "user")
	}
	if preset.Footer == "" {
		preset.Footer = prompts.MustGet("seo.json", "footer")
	}

	for _, sub := range pf.Subtasks {
		root, err := types.ParseKind(sub.Kind)
		if err != nil {
			return nil, &types.ConfigurationError{Field: "subtasks." + sub.Name, Message: err.Error()}
		}
		var fields types.Shape
		if len(sub.Fields) > 0 {
			fields = make(types.Shape, len(sub.Fields))
			for field, tag := range sub.Fields {
				kind, err := types.ParseKind(tag)
				if err != nil {
					return nil, &types.ConfigurationError{Field: "subtasks." + sub.Name + "." + field, Message: err.Error()}
				}
				fields[field] = kind
			}
		}
		preset.Subtasks = append(preset.Subtasks, types.SubtaskSpec{
			Name:       sub.Name,
			FormatHint: sub.Format,
			Intro:      sub.Intro,
			Root:       root,
			Fields:     fields,
		})
	}

	if err := preset.Validate(); err != nil {
		return nil, err
	}
	return preset, nil
}
