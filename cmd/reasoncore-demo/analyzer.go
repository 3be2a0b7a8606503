package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/reasoncore/engine/intent"
	"github.com/reasoncore/engine/llms"
)

// classificationPrompt enumerates the closed Intent set the model must
// pick exactly one label from, one per line, so the response can be
// matched back without any structured-output support from the provider.
const classificationPrompt = `Classify the assistant's most recent message below into exactly one of these labels, and reply with only the label:

provides_final_answer - the assistant gave a complete answer to the request
states_inability_to_proceed - the assistant said it cannot continue
asks_clarifying_question - the assistant asked the user a question before proceeding
requests_more_input - the assistant is waiting on more information to act
general_conversation - small talk unrelated to task completion
provides_plan_without_explicit_action - the assistant described a plan but took no action
ambiguous - none of the above clearly apply

Assistant message:
%s`

var intentLabels = map[string]intent.Intent{
	"provides_final_answer":                 intent.ProvidesFinalAnswer,
	"states_inability_to_proceed":           intent.StatesInabilityToProceed,
	"asks_clarifying_question":              intent.AsksClarifyingQuestion,
	"requests_more_input":                   intent.RequestsMoreInput,
	"general_conversation":                  intent.GeneralConversation,
	"provides_plan_without_explicit_action": intent.ProvidesPlanWithoutExplicitAction,
	"ambiguous":                             intent.Ambiguous,
}

// newLLMIntentAnalyzer adapts provider into an intent.Analyzer by asking
// it to self-classify its own prior text against the closed Intent set.
// This is a thin, single-purpose use of the same provider the loop
// already holds; a production host might swap in a classifier fine-tuned
// for this instead.
func newLLMIntentAnalyzer(provider llms.LLMProvider) intent.Analyzer {
	return intent.AnalyzerFunc(func(text string, priorHistory []string) (intent.Intent, error) {
		messages := []llms.Message{
			{Role: "user", Content: fmt.Sprintf(classificationPrompt, text)},
		}
		reply, _, _, err := provider.Generate(context.Background(), messages, nil)
		if err != nil {
			return intent.Ambiguous, fmt.Errorf("classifying intent: %w", err)
		}
		label := strings.ToLower(strings.TrimSpace(reply))
		label = strings.Trim(label, ".\"'")
		if classified, ok := intentLabels[label]; ok {
			return classified, nil
		}
		return intent.Ambiguous, nil
	})
}
