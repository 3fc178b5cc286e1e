package sanitize

// Scope says where an echo rule applies.
type Scope int

const (
	// ScopeLine drops whole lines that start with the pattern.
	ScopeLine Scope = iota
	// ScopeLineAndSentence also drops sentences containing the pattern
	// anywhere, for instruction text inlined mid-paragraph.
	ScopeLineAndSentence
	// ScopeLineAndSentenceStart also drops sentences that begin with the
	// pattern, for prompt headers echoed inline ("... France. Question: ...").
	ScopeLineAndSentenceStart
)

// Rule is one prompt-echo shape. Pattern is an unanchored RE2 fragment,
// matched case-insensitively.
type Rule struct {
	Name    string
	Pattern string
	Scope   Scope
}

// DefaultRules returns the built-in echo rules. Distinctive instruction
// phrases match anywhere in a sentence and prompt headers match at a
// sentence start. Short openers like "Do not" stay line-anchored so genuine
// answers using them mid-sentence survive.
func DefaultRules() []Rule {
	return []Rule{
		// headers
		{Name: "context_header", Pattern: `Context[ \t]*[:\-]`, Scope: ScopeLineAndSentenceStart},
		{Name: "question_header", Pattern: `Question[ \t]*[:\-]`, Scope: ScopeLineAndSentenceStart},
		{Name: "current_question_header", Pattern: `Current[ \t]+Question[ \t]*[:\-]`, Scope: ScopeLineAndSentenceStart},
		{Name: "instructions_header", Pattern: `Instructions?[ \t]*[:\-]`, Scope: ScopeLineAndSentenceStart},
		{Name: "history_header", Pattern: `(?:Conversation[ \t]+)?History[ \t]*[:\-]`, Scope: ScopeLineAndSentenceStart},
		{Name: "previous_conversation", Pattern: `Previous[ \t]+conversation\b`},
		{Name: "document_header", Pattern: `Document(?:[ \t]+(?:Context|excerpt))?[ \t]*[:\-]`, Scope: ScopeLineAndSentenceStart},
		{Name: "numbered_document_header", Pattern: `Doc(?:ument)?[ \t]*\d+[ \t]*[:\-]`},
		{Name: "rules_header", Pattern: `RULES[ \t]*[:\-]`},
		{Name: "summary_format_header", Pattern: `Summary[ \t]*\(bullet`},

		// instruction openers
		{Name: "do_not", Pattern: `Do NOT\b`},
		{Name: "keep_the_answer", Pattern: `Keep the answer\b`},
		{Name: "base_your", Pattern: `Base your\b`},
		{Name: "if_not_found", Pattern: `If the answer is not\b`},
		{Name: "use_only", Pattern: `Use only\b`},

		// bullet-prefixed rules
		{Name: "bullet_use_only", Pattern: `[-*•][ \t]*Use ONLY\b`},
		{Name: "bullet_summarize_in", Pattern: `[-*•][ \t]*Summarize in\b`},
		{Name: "bullet_distinguish", Pattern: `[-*•][ \t]*Clearly distinguish\b`},
		{Name: "bullet_return_clean", Pattern: `[-*•][ \t]*Return clean\b`},

		// distinctive instruction phrases
		{Name: "persona", Pattern: `You are an? (?:helpful|precise)\b`, Scope: ScopeLineAndSentence},
		{Name: "use_the_document", Pattern: `Use the document\b`, Scope: ScopeLineAndSentence},
		{Name: "use_only_provided", Pattern: `Use only the (?:provided|given) (?:text|context|document)`, Scope: ScopeLineAndSentence},
		{Name: "answer_using_only", Pattern: `Answer the question using only\b`, Scope: ScopeLineAndSentence},
		{Name: "brief_and_direct", Pattern: `Be brief and direct\b`, Scope: ScopeLineAndSentence},
		{Name: "summarize_instruction", Pattern: `Summarize the document below\b`, Scope: ScopeLineAndSentence},
		{Name: "compare_instruction", Pattern: `Compare the documents below\b`, Scope: ScopeLineAndSentence},
	}
}
