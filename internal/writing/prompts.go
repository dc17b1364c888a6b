package writing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matsen/litsynth/internal/analysis"
)

// SystemPrompt frames every section request.
const SystemPrompt = "You are an expert academic researcher and scientific writer. " +
	"Write in formal, precise academic English. Use clear paragraph structure. " +
	"Do not use bullet points unless explicitly asked. Do not repeat the section heading."

// Section names, also the keys of document_sections.json.
const (
	SectionAbstract           = "abstract"
	SectionIntroduction       = "introduction"
	SectionMethods            = "methods_comparison"
	SectionResults            = "results_synthesis"
	SectionDiscussion         = "discussion"
	SectionConclusion         = "conclusion"
	SectionFutureImplications = "future_implications"
	SectionReferences         = "references"
	SectionBibTeX             = "bibtex"
	SectionReport             = "synthesis_report"
)

const defaultTopic = "the research topic"

// prose describes one generated section: its prompt, its deterministic
// fallback and its token budget.
type prose struct {
	name      string
	maxTokens int
	prompt    func(*analysis.Results) string
	fallback  func(*analysis.Results) string
}

var proseSections = []prose{
	{SectionAbstract, 300, abstractPrompt, abstractFallback},
	{SectionIntroduction, 800, introductionPrompt, introductionFallback},
	{SectionMethods, 1200, methodsPrompt, methodsFallback},
	{SectionResults, 1500, resultsPrompt, resultsFallback},
	{SectionDiscussion, 1000, discussionPrompt, discussionFallback},
	{SectionConclusion, 800, conclusionPrompt, conclusionFallback},
}

// firstN joins at most n items with ", ".
func firstN(items []string, n int) string {
	return strings.Join(items[:min(n, len(items))], ", ")
}

// themes joins the first n key themes, or names the topic generically.
func themes(r *analysis.Results, n int) string {
	if len(r.KeyThemes) == 0 {
		return defaultTopic
	}
	return firstN(r.KeyThemes, n)
}

func yearOf(p analysis.PaperAnalysis) string {
	if p.Year <= 0 {
		return "n.d."
	}
	return fmt.Sprint(p.Year)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// PaperContext renders the per-paper digest fed to section prompts.
func PaperContext(papers []analysis.PaperAnalysis) string {
	parts := make([]string, len(papers))
	for i, p := range papers {
		authors := "Unknown"
		if len(p.Authors) > 0 {
			authors = firstN(p.Authors, 3)
		}
		methods := p.Sections.Methods
		if a := p.Methodology.Approaches; len(a) > 0 {
			methods = strings.Join(a[:min(2, len(a))], "; ")
		}
		findings := "N/A"
		if f := p.KeyFindings; len(f) > 0 {
			findings = strings.Join(f[:min(2, len(f))], "; ")
		}
		parts[i] = fmt.Sprintf("Paper %d: %s (%s)\n"+
			"  Authors: %s\n"+
			"  Objective: %s\n"+
			"  Methods: %s\n"+
			"  Results: %s\n"+
			"  Key Findings: %s\n"+
			"  Conclusion: %s\n"+
			"  Citations: %d",
			i+1, p.Title, yearOf(p), authors,
			orNA(p.Sections.Objective), orNA(methods), orNA(p.Sections.Results),
			findings, orNA(p.Sections.Conclusion), p.Citations)
	}
	return strings.Join(parts, "\n\n")
}

// yearRange returns "first–last" over the year distribution.
func yearRange(r *analysis.Results) string {
	years := r.CrossPaperAnalysis.YearDistribution.Keys()
	if len(years) == 0 {
		return "recent years"
	}
	return slices.Min(years) + "–" + slices.Max(years)
}

func abstractPrompt(r *analysis.Results) string {
	return fmt.Sprintf("Write a concise academic abstract (maximum 150 words) for a research synthesis "+
		"that reviews the following %d papers on the topic of %s.\n\n"+
		"The abstract must cover: (1) purpose of the review, (2) scope and methodology of the synthesis, "+
		"(3) key findings across papers, (4) conclusions and implications.\n\n"+
		"PAPERS:\n%s",
		len(r.Papers), themes(r, 3), PaperContext(r.Papers))
}

func abstractFallback(r *analysis.Results) string {
	return fmt.Sprintf("This systematic review synthesizes %d research papers examining %s. "+
		"The review identifies key methodological approaches, consolidates empirical findings, "+
		"and highlights emerging trends. Results indicate significant advances in the field "+
		"with implications for future research directions.",
		len(r.Papers), themes(r, 3))
}

func introductionPrompt(r *analysis.Results) string {
	titles := make([]string, len(r.Papers))
	for i, p := range r.Papers {
		titles[i] = fmt.Sprintf("- %s (%s)", p.Title, yearOf(p))
	}
	return fmt.Sprintf("Write a formal Introduction section (3–4 paragraphs) for a research synthesis paper.\n\n"+
		"Topic: %s\n"+
		"Time span: %s\n"+
		"Papers reviewed:\n%s\n\n"+
		"The introduction should: (1) establish the research domain and its importance, "+
		"(2) identify the research gap or motivation for this review, "+
		"(3) state the objectives of the synthesis, "+
		"(4) outline the structure of the paper.",
		themes(r, 5), yearRange(r), strings.Join(titles, "\n"))
}

func introductionFallback(r *analysis.Results) string {
	return fmt.Sprintf("The rapid advancement of %s has generated a substantial body of literature spanning %s. "+
		"This synthesis reviews %d seminal works to consolidate current knowledge, identify methodological "+
		"trends, and highlight gaps that warrant further investigation. The papers reviewed collectively "+
		"address %s, providing a comprehensive foundation for understanding the state of the field.",
		themes(r, 2), yearRange(r), len(r.Papers), themes(r, 4))
}

func methodsPrompt(r *analysis.Results) string {
	return "Write a detailed Methodological Comparison section (3–5 paragraphs) for a research synthesis.\n\n" +
		"Compare and contrast the research methodologies used across the following papers. " +
		"Discuss: (1) the types of methods used (experimental, theoretical, empirical, etc.), " +
		"(2) commonalities and shared approaches, (3) key differences and unique contributions, " +
		"(4) strengths and limitations of each approach.\n\n" +
		"PAPERS:\n" + PaperContext(r.Papers)
}

func methodsFallback(r *analysis.Results) string {
	parts := []string{"The reviewed papers employ a range of methodological approaches, reflecting the diversity of the field.\n"}
	for i, p := range r.Papers {
		method := "General analytical approach"
		if a := p.Methodology.Approaches; len(a) > 0 {
			method = strings.Join(a[:min(2, len(a))], "; ")
		}
		parts = append(parts, fmt.Sprintf("**Paper %d: %s:** %s", i+1, p.Title, method))
	}
	return strings.Join(parts, "\n\n")
}

func resultsPrompt(r *analysis.Results) string {
	return fmt.Sprintf("Write a comprehensive Results Synthesis section (4–6 paragraphs) for a research synthesis paper.\n\n"+
		"Synthesize the findings from the following papers on %s. "+
		"The section should: (1) present aggregate findings across papers, "+
		"(2) compare quantitative and qualitative results where available, "+
		"(3) identify convergent findings (where papers agree), "+
		"(4) highlight divergent findings (where papers disagree or differ), "+
		"(5) discuss the significance of the combined results.\n\n"+
		"PAPERS:\n%s",
		themes(r, 3), PaperContext(r.Papers))
}

func resultsFallback(r *analysis.Results) string {
	parts := []string{fmt.Sprintf("The synthesis of findings across %d papers reveals several important patterns.\n", len(r.Papers))}
	for _, p := range r.Papers {
		finding := analysis.NoFindings
		if len(p.KeyFindings) > 0 {
			finding = p.KeyFindings[0]
		}
		parts = append(parts, fmt.Sprintf("**%s (%s):** %s", p.Title, yearOf(p), finding))
	}
	return strings.Join(parts, "\n\n")
}

func discussionPrompt(r *analysis.Results) string {
	return fmt.Sprintf("Write a Discussion section (3–4 paragraphs) for a research synthesis paper on %s.\n\n"+
		"The discussion should: (1) interpret the synthesized results in the broader context of the field, "+
		"(2) explain what the aggregate findings mean for theory and practice, "+
		"(3) discuss limitations of the reviewed studies and the synthesis itself, "+
		"(4) compare findings with prior reviews or established knowledge.\n\n"+
		"Research trends identified: %s\n"+
		"Number of papers reviewed: %d",
		themes(r, 3), strings.Join(r.CrossPaperAnalysis.ResearchTrends, ", "), len(r.Papers))
}

func discussionFallback(r *analysis.Results) string {
	return fmt.Sprintf("The findings synthesized from %d papers provide important insights into %s. "+
		"The convergence of methodological approaches suggests a maturing field, while divergent results "+
		"highlight areas requiring further empirical investigation. The identified trends (%s) align with "+
		"broader developments in the discipline. Limitations include the reliance on abstract-level data "+
		"and the restricted number of papers reviewed.",
		len(r.Papers), themes(r, 2), firstN(r.CrossPaperAnalysis.ResearchTrends, 2))
}

func conclusionPrompt(r *analysis.Results) string {
	return fmt.Sprintf("Write a Conclusion section (2–3 paragraphs) for a research synthesis on %s.\n\n"+
		"The conclusion should: (1) summarize the key takeaways from the synthesis, "+
		"(2) restate the significance of the reviewed work, "+
		"(3) propose specific future research directions and open questions, "+
		"(4) end with a forward-looking statement about the field.\n\n"+
		"Number of papers reviewed: %d",
		themes(r, 3), len(r.Papers))
}

func conclusionFallback(r *analysis.Results) string {
	return fmt.Sprintf("This synthesis of %d papers on %s demonstrates the significant progress made in the field. "+
		"Key contributions include advances in %s. Future research should focus on addressing identified gaps, "+
		"expanding empirical validation, and exploring interdisciplinary applications. "+
		"The field is poised for continued growth as new methodologies and datasets emerge.",
		len(r.Papers), themes(r, 2), themes(r, 3))
}

// revisePrompt asks for a full revised document following instruction.
func revisePrompt(instruction, document string) string {
	return fmt.Sprintf("You are a meticulous academic editor. Revise the following research report according to the user's request.\n"+
		"USER INSTRUCTION: %q\n\n"+
		"IMPORTANT REVISION RULES:\n"+
		"1. Follow the user's instruction EXACTLY and COMPLETELY.\n"+
		"2. If asked to increase word count, expand each section with more detail, examples, and analysis.\n"+
		"3. If asked to add bullet points, convert relevant paragraphs to structured bullet lists using - or *.\n"+
		"4. If asked to add headings, insert new ## or ### Markdown headings to organize content.\n"+
		"5. If asked to add styling, use **bold**, *italic*, blockquotes as appropriate.\n"+
		"6. If asked to add tables, create Markdown tables with | syntax.\n"+
		"7. Maintain formal academic English throughout.\n"+
		"8. Do NOT invent new papers or citations not already in the document.\n"+
		"9. Preserve the overall Markdown structure (## headings, --- dividers).\n"+
		"10. Return ONLY the full revised markdown document, with no preamble and no explanation.\n\n"+
		"CURRENT DOCUMENT:\n%s",
		instruction, document)
}
