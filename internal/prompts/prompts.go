package prompts

import (
	"fmt"
	"strings"
	"text/template"
)

// Step labels, used for logging and by the /api/text describer prefix.
const (
	StepDescriber   = "describer"
	StepInterpreter = "interpreter"
	StepExecutor    = "image"
	StepRewrite     = "image_validation"
)

// Prompt is the exact payload for one gateway call.
type Prompt struct {
	Step              string
	Text              string
	SystemInstruction string
}

// Composers groups the three stage composers so callers can substitute them.
type Composers struct {
	Describer   func(input string) Prompt
	Interpreter func(description string) Prompt
	Executor    func(specification string) Prompt
}

func Default() Composers {
	return Composers{
		Describer:   Describer,
		Interpreter: Interpreter,
		Executor:    Executor,
	}
}

const DescriberPrefix = "Main garment only. No secondary garments. No accessory expansion. No styling variation."

// WithDescriberPrefix prepends DescriberPrefix unless prompt already starts with it.
func WithDescriberPrefix(prompt string) string {
	if strings.HasPrefix(prompt, DescriberPrefix) {
		return prompt
	}
	return DescriberPrefix + "\n\n" + prompt
}

type describerFields struct {
	Input string
}

const describerInstruction = `You are a "Garment Structure Stabilizer".
Your goal is to isolate and describe the PHYSICAL STRUCTURE of the SINGLE MAIN GARMENT from the user's input.

CRITICAL RULES:
1.  **Main Garment Only**: Identify the primary piece (usually coat, jacket, dress, or top). Ignore secondary pieces like leggings, skirts, trousers or pants (unless the user explicitly asks for that bottom as the only item), and shoes.
2.  **Remove Styling & Accessories**: COMPLETELY REMOVE references to:
    *   Accessories: bags, necklaces, rings, watches, jewelry, hats, headwear, glasses, eyewear.
    *   Styling: "styled with", "matched with", "wear it with", "coordination".
    *   Keywords to purge: leggings, skirt, pants, trousers, bottoms, coordination, match, styling, accessory, necklace, ring, watch, bag, suggestion, usage.
3.  **Focus on Structure**: Describe ONLY:
    *   Cut and Silhouette (e.g., oversized, tailored, boxy).
    *   Fabric properties (e.g., heavy wool, rigid canvas, fluid silk).
    *   Construction details (e.g., drop shoulder, double-breasted, raw hem).
    *   Proportions.
4.  **No "Ideas"**: Do not generate new creative ideas. Just stabilize and refine the input into a structural description.

Input: "{{ .Input }}"

Output: A concise, technical description of the SINGLE main garment's structure. No styling advice.`

var describerTmpl = template.Must(template.New("describer").Parse(describerInstruction))

// Describer normalizes raw user input into a structural description of one garment.
func Describer(input string) Prompt {
	return Prompt{
		Step:              StepDescriber,
		Text:              WithDescriberPrefix(input),
		SystemInstruction: render(describerTmpl, describerFields{Input: input}),
	}
}

// InterpreterSections is the fixed section order of an interpreter specification.
var InterpreterSections = []string{
	"Garment Type",
	"Silhouette Structure",
	"Construction Details",
	"Fabric Weight & Texture",
	"Fit Description",
	"Structural Stability Notes",
}

type interpreterFields struct {
	Sections       []string
	MaxDecorations int
}

const interpreterInstruction = `You are a Garment Structure Interpreter.

Your task is NOT to create fashion ideas.
Your task is to convert conceptual fashion descriptions into
realistic, wearable garment construction specifications.

STRICT ENFORCEMENT:
- **Main Garment Only**: If the input still contains accessories or secondary garments, IGNORE THEM.
- **No Accessory Expansion**: Do not invent accessories.
- **No Styling Variation**: Do not suggest how to wear it.

Rules:
1. All garments must be physically wearable by humans.
2. Construction must follow logical tailoring structure.
3. Seams must align naturally.
4. Sleeves must attach realistically.
5. Fabric must behave according to gravity.
6. No distorted proportions.
7. No fantasy elements.
8. No logos.
9. No brand references.
10. Minimal decorative details (maximum {{ .MaxDecorations }}).

Output format:
{{ range .Sections }}
- {{ . }}{{ end }}

Only output structured garment specification.
Do NOT add styling commentary.
Do NOT add background description.
Do NOT describe lighting.`

var interpreterTmpl = template.Must(template.New("interpreter").Parse(interpreterInstruction))

// Interpreter converts a garment description into the six-section specification format.
func Interpreter(description string) Prompt {
	return Prompt{
		Step:              StepInterpreter,
		Text:              description,
		SystemInstruction: render(interpreterTmpl, interpreterFields{Sections: InterpreterSections, MaxDecorations: 3}),
	}
}

type executorFields struct {
	Specification string
	Directives    []string
}

// RealismDirectives is appended to every execution prompt.
var RealismDirectives = []string{
	"realistic tailoring construction",
	"logical seam alignment",
	"natural fabric gravity",
	"balanced human proportions",
	"no distorted garment structure",
	"no extra fabric",
	"no melting textile",
	"no warped symmetry",
}

const executorPrompt = `Generate a high-quality fashion image based STRICTLY on these specifications.

{{ .Specification }}

{{ range $i, $d := .Directives }}{{ if $i }},
{{ end }}{{ $d }}{{ end }}

IMPORTANT:
- Render ONLY the garment described.
- NO extra accessories.
- NO complex background, use a plain minimal backdrop.
- Focus on structural realism.`

var executorTmpl = template.Must(template.New("executor").Parse(executorPrompt))

// Executor wraps an interpreter specification into the image generation prompt.
func Executor(specification string) Prompt {
	return Prompt{
		Step: StepExecutor,
		Text: render(executorTmpl, executorFields{Specification: specification, Directives: RealismDirectives}),
	}
}

type rewriteFields struct {
	Prompt string
}

const rewritePrompt = `Rewrite the following fashion specification to REMOVE all references to secondary garments (legwear, pants, trousers, skirts, leggings, tights, denim) and accessories (jewelry, bags, eyewear, glasses, headwear, etc). Keep ONLY the main garment structure. Return only the rewritten specification.

Input: "{{ .Prompt }}"`

var rewriteTmpl = template.Must(template.New("rewrite").Parse(rewritePrompt))

// Rewrite builds the instruction that asks the provider to strip forbidden
// references from an execution prompt.
func Rewrite(prompt string) Prompt {
	return Prompt{
		Step: StepRewrite,
		Text: render(rewriteTmpl, rewriteFields{Prompt: prompt}),
	}
}

func render(tmpl *template.Template, data any) string {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		panic(fmt.Sprintf("prompt template %s: %v", tmpl.Name(), err))
	}
	return b.String()
}
