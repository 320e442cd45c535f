// Package prompts contains every user-facing string and LLM instruction,
// per language.
package prompts

import (
	"fmt"
	"strings"
)

// Catalog is the set of texts for one language.
type Catalog struct {
	Greeting          []string // %s in a line = termination keyword
	Preamble          string
	MissingAPIKey     string
	Finished          string // %s = output file name
	MissingEdges      string
	NotWellFormed     string // %s = parser error
	ViewerError       string
	EmptyContext      string // %s = termination keyword
	GenerationFailed  string // %s = error
	ChatFailed        string // %s = error
	DocumentImported  string // %s = source
	UserLabel         string
	BotLabel          string
	ErrorTitle        string
	Thinking          string
	Generating        string
	AttemptsNote      string
	KeySaved          string
	KeyUsage          string
	Reset             string
	generationIntro   string
	generationTail    string
	descriptionHeader string
	repairIntro       string
}

var spanish = Catalog{
	Greeting: []string{
		"Bienvenido a AUTO CODING!",
		"Mi misión es ayudarte en la automatización de generación de código para los procesos de tu empresa.",
		"Dame todo el contexto que consideres necesario. Cuando consideres que me has dado todo lo que necesito, escribe %s en el chat.",
	},
	Preamble: "Vas a hacer un agente que se encarga de recibir información por parte del usuario, " +
		"con el objetivo de generar un BPMN en formato XML al final de la interacción. " +
		"Enfócate en escuchar al usuario en lugar de contestar preguntas. " +
		"Si tienes una opinión o crees que ciertas preguntas pueden ayudar a mejorar " +
		"el contexto del proceso, hazlas.",
	MissingAPIKey:    "No olvides agregar tu API KEY",
	Finished:         "✅ Proceso finalizado. El archivo BPMN ha sido generado como `%s`.",
	MissingEdges:     "⚠️ El XML contiene flujos de secuencia pero no incluye elementos gráficos <bpmndi:BPMNEdge>. Algunas flechas pueden aparecer desconectadas.",
	NotWellFormed:    "⚠️ El XML generado no es válido: %s",
	ViewerError:      "Error cargando BPMN:",
	EmptyContext:     "Todavía no me has descrito ningún proceso. Cuéntame cómo funciona antes de escribir %s.",
	GenerationFailed: "No se pudo generar el BPMN: %s",
	ChatFailed:       "No se pudo contactar al modelo: %s",
	DocumentImported: "📎 Documento agregado al contexto: %s",
	UserLabel:        "Tú",
	BotLabel:         "Chatbot",
	ErrorTitle:       "Error",
	Thinking:         "Pensando...",
	Generating:       "Generando el BPMN...",
	AttemptsNote:     "el modelo necesitó varios intentos para un XML válido",
	KeySaved:         "🔑 API KEY guardada para esta conversación.",
	KeyUsage:         "Uso: /key <tu API KEY>",
	Reset:            "Conversación reiniciada.",
	generationIntro: "Eres un experto en modelado de procesos de negocio. " +
		"Con la siguiente descripción textual de un proceso, genera un archivo BPMN 2.0 válido en formato XML. " +
		"Asegúrate de que cada elemento del proceso (tareas, eventos, compuertas y flujos de secuencia) tenga su correspondiente " +
		"representación gráfica en el bloque <bpmndi:BPMNDiagram>, incluyendo <bpmndi:BPMNShape> y <bpmndi:BPMNEdge> con coordenadas x/y. " +
		"No incluyas ninguna explicación, solo el XML completo.",
	descriptionHeader: "Descripción del proceso:",
	generationTail:    "Genera el archivo BPMN XML:",
	repairIntro: "El XML anterior tiene los siguientes problemas. " +
		"Corrígelos y devuelve de nuevo el archivo BPMN 2.0 completo, sin explicaciones:",
}

var english = Catalog{
	Greeting: []string{
		"Welcome to AUTO CODING!",
		"My mission is to help you automate code generation for your company's processes.",
		"Give me all the context you think I need. When you have told me everything, type %s in the chat.",
	},
	Preamble: "You are an agent that collects information from the user " +
		"in order to produce a BPMN diagram in XML format at the end of the interaction. " +
		"Focus on listening to the user rather than answering questions. " +
		"If you have an opinion or think certain questions would improve " +
		"the context of the process, ask them.",
	MissingAPIKey:    "Don't forget to add your API KEY",
	Finished:         "✅ Process finished. The BPMN file has been generated as `%s`.",
	MissingEdges:     "⚠️ The XML contains sequence flows but no <bpmndi:BPMNEdge> graphics. Some arrows may appear disconnected.",
	NotWellFormed:    "⚠️ The generated XML is not valid: %s",
	ViewerError:      "Error loading BPMN:",
	EmptyContext:     "You haven't described any process yet. Tell me how it works before typing %s.",
	GenerationFailed: "Could not generate the BPMN: %s",
	ChatFailed:       "Could not reach the model: %s",
	DocumentImported: "📎 Document added to the context: %s",
	UserLabel:        "You",
	BotLabel:         "Chatbot",
	ErrorTitle:       "Error",
	Thinking:         "Thinking...",
	Generating:       "Generating the BPMN...",
	AttemptsNote:     "the model needed several attempts for a valid XML",
	KeySaved:         "🔑 API KEY saved for this conversation.",
	KeyUsage:         "Usage: /key <your API KEY>",
	Reset:            "Conversation restarted.",
	generationIntro: "You are an expert in business process modeling. " +
		"From the following textual description of a process, generate a valid BPMN 2.0 file in XML format. " +
		"Make sure every element of the process (tasks, events, gateways and sequence flows) has its graphical " +
		"representation in the <bpmndi:BPMNDiagram> block, including <bpmndi:BPMNShape> and <bpmndi:BPMNEdge> with x/y coordinates. " +
		"Do not include any explanation, only the complete XML.",
	descriptionHeader: "Process description:",
	generationTail:    "Generate the BPMN XML file:",
	repairIntro: "The previous XML has the following problems. " +
		"Fix them and return the complete BPMN 2.0 file again, without explanations:",
}

// For returns the catalog for lang; anything but "en" is Spanish.
func For(lang string) *Catalog {
	if strings.EqualFold(lang, "en") {
		return &english
	}
	return &spanish
}

// displayKeyword is the keyword as shown to the user.
func displayKeyword(keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		keyword = "terminar"
	}
	return strings.ToUpper(keyword)
}

// Greetings returns the greeting lines naming keyword as the way to finish.
func (c *Catalog) Greetings(keyword string) []string {
	out := make([]string, len(c.Greeting))
	for i, line := range c.Greeting {
		if strings.Contains(line, "%s") {
			line = fmt.Sprintf(line, displayKeyword(keyword))
		}
		out[i] = line
	}
	return out
}

// EmptyContextNotice is the reply to the keyword before any description.
func (c *Catalog) EmptyContextNotice(keyword string) string {
	return fmt.Sprintf(c.EmptyContext, displayKeyword(keyword))
}

// GenerationPrompt builds the single-shot instruction sent on termination.
func (c *Catalog) GenerationPrompt(description string) string {
	return c.generationIntro + "\n\n" +
		c.descriptionHeader + "\n" + description + "\n\n" +
		c.generationTail
}

// RepairPrompt asks the model to fix the listed problems.
func (c *Catalog) RepairPrompt(problems []string) string {
	var sb strings.Builder
	sb.WriteString(c.repairIntro)
	sb.WriteString("\n")
	for _, p := range problems {
		sb.WriteString("- ")
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FinishedMessage names the written file.
func (c *Catalog) FinishedMessage(fileName string) string {
	return fmt.Sprintf(c.Finished, fileName)
}
