package ai

const AnalyzeQueryPrompt = `
# Task Context
You are an assistant that analyzes research questions about space biology, human spaceflight physiology and mission health risks.

# Background Data
Question: "%s"

# Detailed Task Description & Rules
- Summarize what the user wants to know in one sentence.
- List the key scientific concepts mentioned or implied by the question.
- Rate the complexity of the question as "simple", "moderate" or "complex".

# Output Formatting
Return a JSON object with the fields "summary", "key_concepts" and "complexity".
`

const IntentPrompt = `
# Task Context
You classify research questions by the kind of work needed to answer them.

# Background Data
Question: "%s"
Analysis: "%s"

# Detailed Task Description & Rules
Choose exactly one intent:
- literature_search: find papers or evidence about a topic
- hypothesis_generation: propose new, testable research hypotheses
- mission_risk_analysis: assess health or operational risks of a mission
- knowledge_gap_analysis: identify what is not yet known
- comparative_analysis: compare conditions, organisms, studies or outcomes
- factual_question: a direct factual question with a short answer
Questions mentioning risk together with a mission, crew, spaceflight duration or destination are mission_risk_analysis.
Give a confidence between 0 and 1.

# Output Formatting
Return a JSON object with the fields "intent" and "confidence".
`

const EntityPrompt = `
# Task Context
You extract scientific entities from a research question.

# Background Data
Question: "%s"

# Detailed Task Description & Rules
- Only extract entities literally present in the question or unambiguous synonyms of them.
- Every entity must have one of these types: biological_process, anatomical_structure, chemical, environment, device, measurement, organism.
- Prefer short canonical names in lowercase (e.g. "bone density", "microgravity").

# Output Formatting
Return a JSON object with the field "entities", a list of objects with "name" and "type".
`

const RoutingPrompt = `
# Task Context
You choose the retrieval strategy for a research question against a paper database that supports full-text search, vector similarity search and a knowledge graph of entities.

# Background Data
Question: "%s"
Intent: "%s"
Entities: %s

# Detailed Task Description & Rules
Choose exactly one strategy:
- hybrid_search: combine all methods; the safe default
- vector_search: conceptual or paraphrased questions
- graph_search: questions about relations between named entities
- lexical_search: exact terms, names or identifiers

# Output Formatting
Return a JSON object with the fields "strategy" and "reason".
`

const LiteraturePrompt = `
# Task Context
You are a research assistant reviewing literature excerpts.

# Background Data
Research topic: "%s"

Excerpts:
%s

# Detailed Task Description & Rules
- State the key findings supported by the excerpts.
- Name the recurring themes.
- Do not invent findings that the excerpts do not support.

# Output Formatting
Return a JSON object with the fields "findings" and "themes", both lists of strings.
`

const GapPrompt = `
# Task Context
You identify knowledge gaps in a body of research.

# Background Data
Research topic: "%s"
Known findings:
%s

# Detailed Task Description & Rules
- List open questions the findings do not answer.
- Each gap must be specific enough to motivate a study.

# Output Formatting
Return a JSON object with the field "gaps", a list of strings.
`

const HypothesisPrompt = `
# Task Context
You generate testable research hypotheses.

# Background Data
Research topic: "%s"
Knowledge gaps:
%s

# Detailed Task Description & Rules
- Write one hypothesis per gap.
- Each hypothesis must name an independent and a dependent variable.
- Add a short rationale.

# Output Formatting
Return a JSON object with the field "hypotheses", a list of objects with "statement", "rationale" and "gap".
`

const RankHypothesesPrompt = `
# Task Context
You evaluate research hypotheses.

# Background Data
Hypotheses:
%s

# Detailed Task Description & Rules
Score every hypothesis between 0 and 1 for novelty, feasibility and evidence support.
Keep the statements unchanged.

# Output Formatting
Return a JSON object with the field "hypotheses", a list of objects with "statement", "novelty", "feasibility" and "evidence".
`

const MissionProfilePrompt = `
# Task Context
You are a space medicine analyst reviewing a mission profile.

# Background Data
Mission profile:
%s

# Detailed Task Description & Rules
- Summarize the mission from a crew health perspective.
- List the environmental stressors the crew will face.

# Output Formatting
Return a JSON object with the fields "summary" and "stressors".
`

const RiskCategoriesPrompt = `
# Task Context
You select the health risk categories relevant to a space mission.

# Background Data
Mission summary: "%s"
Evidence from the literature:
%s

# Detailed Task Description & Rules
Choose the relevant categories from: radiation, bone_loss, muscle_atrophy, cardiovascular, immune, psychological, vision, nutrition.

# Output Formatting
Return a JSON object with the field "categories", a list of strings.
`

const RiskScoringPrompt = `
# Task Context
You score mission health risks.

# Background Data
Mission summary: "%s"
Categories: %s
Evidence from the literature:
%s

# Detailed Task Description & Rules
For every category estimate a probability and an impact between 0 and 1.

# Output Formatting
Return a JSON object with the field "risks", a list of objects with "category", "probability" and "impact".
`

const MitigationPrompt = `
# Task Context
You recommend countermeasures for mission health risks.

# Background Data
Scored risks:
%s

# Detailed Task Description & Rules
- Give at least one concrete countermeasure per category.
- Add overall recommendations for mission planners.

# Output Formatting
Return a JSON object with the fields "mitigations" (a list of objects with "category" and "actions") and "recommendations" (a list of strings).
`

const AnswerPrompt = `
# Task Context
You are a research assistant answering questions about space biology using only the provided paper excerpts.

# Background Data
%s

# Detailed Task Description & Rules
- Answer using only facts from the excerpts.
- Cite the paper id of every excerpt you use in the form [[paper_id]].
- If the excerpts do not answer the question, say so.
- Be concise and precise.
`

const NoDataPrompt = `
# Task Context
You are a research assistant for space biology literature.

# Detailed Task Description & Rules
No relevant papers were found for the question. Tell the user that the knowledge base does not contain an answer and suggest how to rephrase the question or which documents to upload.
`

const FollowUpPrompt = `
# Task Context
You suggest follow-up questions for a research conversation.

# Background Data
Question: "%s"
Answer: "%s"

# Detailed Task Description & Rules
Suggest up to three short follow-up questions that explore the topic further.

# Output Formatting
Return a JSON object with the field "questions", a list of strings.
`

const EntityExtractionPrompt = `
# Task Context
You build a knowledge graph from scientific papers about space biology.

# Background Data
Paper excerpt:
%s

# Detailed Task Description & Rules
- Extract entities with one of these types: biological_process, anatomical_structure, chemical, environment, device, measurement, organism.
- Extract relationships between extracted entities only.
- Use one of these relationship labels: AFFECTS, INFLUENCES, STUDIES, CONTAINS, PRODUCES, USES, MEASURES, INVOLVES, RELATES_TO.
- Give every relationship a confidence between 0 and 1 and quote the supporting sentence as evidence.

# Output Formatting
Return a JSON object with the fields "entities" (objects with "name", "type", "description") and "relationships" (objects with "source", "target", "label", "confidence", "evidence").
`
