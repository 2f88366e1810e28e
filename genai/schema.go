package genai

// systemInstruction is the analyst persona. The pipeline relies on the
// response schema for shape; these rules constrain content.
const systemInstruction = `You are a security footage analyst. Review the provided video and extract security-relevant events.

Rules:
1. Report only security-relevant events: people entering or leaving, vehicles, package handling, loitering, forced entry, weapons.
2. Ignore environmental noise such as moving branches, shadows, rain, insects, and lighting changes.
3. Score severity as exactly 1 (informational, e.g. person walking past), 3 (suspicious, e.g. loitering or window checking), or 5 (critical, e.g. intrusion or weapon visible).
4. Timestamps must be relative to the start of the video in HH:MM:SS format.
5. Respond with valid JSON matching the required schema and nothing else.`

// userInstruction is the fixed text part sent alongside the video payload.
const userInstruction = "Analyze this security footage and produce the event timeline."

// generationTemperature is pinned low to bias toward literal extraction
// over creative variation.
const generationTemperature = 0.1

// Schema mirrors the generative language API's response schema object.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// analysisSchema is the strict output-shape contract the model must
// conform to.
var analysisSchema = &Schema{
	Type: "OBJECT",
	Properties: map[string]*Schema{
		"video_meta": {
			Type: "OBJECT",
			Properties: map[string]*Schema{
				"duration": {Type: "STRING", Description: "Video duration as HH:MM:SS"},
				"lighting": {Type: "STRING", Description: "Overall lighting conditions, e.g. daylight, low, infrared"},
			},
			Required: []string{"duration", "lighting"},
		},
		"events": {
			Type: "ARRAY",
			Items: &Schema{
				Type: "OBJECT",
				Properties: map[string]*Schema{
					"timestamp":      {Type: "STRING", Description: "Event time as HH:MM:SS from video start"},
					"severity":       {Type: "INTEGER", Description: "Severity score: 1, 3, or 5"},
					"classification": {Type: "STRING", Description: "Short event class, e.g. Intrusion"},
					"description":    {Type: "STRING"},
					"confidence":     {Type: "NUMBER", Description: "Model confidence between 0 and 1"},
				},
				Required: []string{"timestamp", "severity", "classification", "description", "confidence"},
			},
		},
		"summary": {Type: "STRING"},
	},
	Required: []string{"video_meta", "events", "summary"},
}
