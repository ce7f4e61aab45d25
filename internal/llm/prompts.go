package llm

const intentPrompt = `Classify the intent of the following user message.

Valid intents: greeting, question, request, complaint, smalltalk, farewell, other

Respond ONLY with JSON, no markdown:
{"intent":"question","confidence":0.85}

Message:
%s`

const sentimentPrompt = `Classify the sentiment of the following user message.

Valid sentiments: positive, negative, neutral

Respond ONLY with JSON, no markdown:
{"sentiment":"neutral","score":0.5}

Message:
%s`

const arbiterPrompt = `You are a rule matcher for a conversational agent. Below is a numbered
list of behavior rules, each summarized as WHEN conditions and DO actions,
followed by the user's message and the detected conversation context.

Pick the single rule that best applies to the message, or 0 if none applies.
Report your confidence from 0 to 100.

Respond ONLY with JSON, no markdown:
{"rule_index":1,"confidence":80,"reason":"brief reason"}

Rules:
%s

Context:
intent=%s sentiment=%s conversation_start=%t

Message:
%s`
