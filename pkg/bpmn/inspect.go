package bpmn

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// ErrNoDefinitions is reported when the text has no definitions root.
var ErrNoDefinitions = errors.New("no BPMN definitions element found")

var (
	flowTag = regexp.MustCompile(`<(?:[\w.\-]+:)?sequenceFlow[\s>/]`)
	edgeTag = regexp.MustCompile(`<(?:[\w.\-]+:)?BPMNEdge[\s>/]`)
)

// Report summarizes what the generated document contains.
type Report struct {
	WellFormed     bool     `json:"wellFormed"`
	ParseError     string   `json:"parseError,omitempty"`
	HasDefinitions bool     `json:"hasDefinitions"`
	HasDiagram     bool     `json:"hasDiagram"`
	Processes      int      `json:"processes"`
	Tasks          int      `json:"tasks"`
	Events         int      `json:"events"`
	Gateways       int      `json:"gateways"`
	Flows          int      `json:"flows"`
	Shapes         int      `json:"shapes"`
	Edges          int      `json:"edges"`
	MissingEdges   bool     `json:"missingEdges"`
	UnshapedNodes  []string `json:"unshapedNodes,omitempty"`
	UnroutedFlows  []string `json:"unroutedFlows,omitempty"`
}

// Inspect parses xmlText and reports its structure. It never fails: parse
// problems are recorded in the report.
func Inspect(xmlText string) Report {
	var r Report

	nodes := map[string]bool{}
	flows := map[string]bool{}
	shaped := map[string]bool{}
	routed := map[string]bool{}

	dec := xml.NewDecoder(strings.NewReader(xmlText))
	dec.Strict = true
	rootSeen := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.ParseError = err.Error()
			break
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		local := se.Name.Local

		if !rootSeen {
			rootSeen = true
			r.HasDefinitions = local == "definitions"
		}

		id := attr(se, "id")
		switch {
		case local == "process":
			r.Processes++
		case isTask(local):
			r.Tasks++
			nodes[id] = true
		case isEvent(local):
			r.Events++
			nodes[id] = true
		case strings.HasSuffix(local, "Gateway"):
			r.Gateways++
			nodes[id] = true
		case local == "sequenceFlow":
			r.Flows++
			flows[id] = true
		case local == "BPMNDiagram":
			r.HasDiagram = true
		case local == "BPMNShape":
			r.Shapes++
			shaped[attr(se, "bpmnElement")] = true
		case local == "BPMNEdge":
			r.Edges++
			routed[attr(se, "bpmnElement")] = true
		}
	}

	if r.ParseError == "" {
		if !rootSeen {
			r.ParseError = "document is empty"
		} else {
			r.WellFormed = true
		}
	}

	if r.WellFormed {
		r.MissingEdges = r.Flows > 0 && r.Edges == 0
	} else {
		// fall back to a textual check on broken documents
		r.MissingEdges = flowTag.MatchString(xmlText) && !edgeTag.MatchString(xmlText)
	}

	if r.WellFormed && r.HasDiagram {
		r.UnshapedNodes = missing(nodes, shaped)
		if !r.MissingEdges {
			r.UnroutedFlows = missing(flows, routed)
		}
	}

	return r
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func isTask(local string) bool {
	switch local {
	case "subProcess", "callActivity", "transaction", "adHocSubProcess":
		return true
	}
	return local == "task" || strings.HasSuffix(local, "Task")
}

func isEvent(local string) bool {
	switch local {
	case "startEvent", "endEvent", "intermediateCatchEvent", "intermediateThrowEvent", "boundaryEvent":
		return true
	}
	return false
}

func missing(want, have map[string]bool) []string {
	var out []string
	for id := range want {
		if id == "" {
			continue
		}
		if !have[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Problems lists the issues worth sending back to the model.
func (r Report) Problems() []string {
	var out []string
	if !r.WellFormed {
		out = append(out, "the XML is not well-formed: "+r.ParseError)
	}
	if r.MissingEdges {
		out = append(out, "sequence flows have no <bpmndi:BPMNEdge> elements")
	}
	return append(out, r.StructureProblems()...)
}

// StructureProblems lists the problems other than well-formedness and the
// missing-edges check.
func (r Report) StructureProblems() []string {
	var out []string
	if r.WellFormed && !r.HasDefinitions {
		out = append(out, ErrNoDefinitions.Error()+"; the root element must be <definitions>")
	}
	if r.WellFormed && r.HasDefinitions && r.Tasks+r.Events+r.Gateways == 0 {
		out = append(out, "the process has no tasks, events or gateways")
	}
	if r.WellFormed && r.HasDefinitions && !r.HasDiagram {
		out = append(out, "the <bpmndi:BPMNDiagram> block is missing")
	}
	for _, id := range r.UnshapedNodes {
		out = append(out, fmt.Sprintf("element %q has no <bpmndi:BPMNShape>", id))
	}
	for _, id := range r.UnroutedFlows {
		out = append(out, fmt.Sprintf("sequence flow %q has no <bpmndi:BPMNEdge>", id))
	}
	return out
}

// NeedsRepair reports whether another generation attempt is worthwhile.
func (r Report) NeedsRepair() bool {
	return len(r.Problems()) > 0
}

// Summary is a one-line description of the diagram contents.
func (r Report) Summary() string {
	return fmt.Sprintf("%d tasks, %d events, %d gateways, %d flows (%d shapes, %d edges)",
		r.Tasks, r.Events, r.Gateways, r.Flows, r.Shapes, r.Edges)
}
