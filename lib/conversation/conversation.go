// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bureau-foundation/beak/lib/llm"
)

// ErrTurnInProgress is returned by RunChatCompletion while another
// turn is running on the same Conversation.
var ErrTurnInProgress = errors.New("conversation: a chat completion is already running")

// infoPrefix introduces the info snapshot system message.
const infoPrefix = "Partial snapshot of the application's current state:\n\n"

// defaultInfoDescription labels snapshots registered without one.
const defaultInfoDescription = "data"

type infoSnapshot struct {
	description string
	data        any
}

// Conversation is a chat history with registered functions. Create
// one with [New].
type Conversation struct {
	config  Config
	adapter Adapter
	logger  *slog.Logger

	instructions llm.Message
	formatting   *llm.Message

	running atomic.Bool

	// mu guards everything below. Messages are only modified by the
	// goroutine running the turn, but are read by Messages and by the
	// prompt builder.
	mu             sync.Mutex
	messages       []*llm.Message
	functions      map[string]FunctionDefinition
	info           map[string]infoSnapshot
	observers      []subscription
	nextObserverID uint64
}

// New creates an empty conversation that sends requests through
// adapter.
func New(config Config, adapter Adapter) (*Conversation, error) {
	if adapter == nil {
		return nil, errors.New("conversation: adapter is required")
	}
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	conversation := &Conversation{
		config:    config,
		adapter:   adapter,
		logger:    config.Logger.With("component", "beak-complete"),
		functions: make(map[string]FunctionDefinition),
		info:      make(map[string]infoSnapshot),
	}

	conversation.instructions = conversation.systemMessage(config.Instructions)
	if *config.FormattingInstructions != "" {
		formatting := conversation.systemMessage(*config.FormattingInstructions)
		conversation.formatting = &formatting
	}
	return conversation, nil
}

func (conversation *Conversation) systemMessage(content string) llm.Message {
	message := llm.NewMessage(llm.RoleSystem, conversation.config.Clock.Now())
	message.Content = content
	message.Status = llm.StatusSuccess
	message.NumTokens = conversation.adapter.CountTokens(message)
	return message
}

// AddFunction registers definition, replacing any function with the
// same name.
func (conversation *Conversation) AddFunction(definition FunctionDefinition) error {
	if err := validateDefinition(definition); err != nil {
		return err
	}
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	conversation.functions[definition.Name] = definition
	return nil
}

// RemoveFunction unregisters the named function. Removing an unknown
// name does nothing.
func (conversation *Conversation) RemoveFunction(name string) {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	delete(conversation.functions, name)
}

// AddInfo registers a snapshot of application state that is sent with
// every following request, and returns its ID for RemoveInfo. An empty
// description is replaced with "data".
func (conversation *Conversation) AddInfo(description string, data any) string {
	if description == "" {
		description = defaultInfoDescription
	}
	id := uuid.NewString()
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	conversation.info[id] = infoSnapshot{description: description, data: data}
	return id
}

// RemoveInfo unregisters a snapshot. Unknown IDs are ignored.
func (conversation *Conversation) RemoveInfo(id string) {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	delete(conversation.info, id)
}

// Messages returns copies of the conversation's messages in order.
// System messages are not included.
func (conversation *Conversation) Messages() []llm.Message {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	result := make([]llm.Message, 0, len(conversation.messages))
	for _, message := range conversation.messages {
		if message.Role == llm.RoleSystem {
			continue
		}
		result = append(result, message.Copy())
	}
	return result
}

// Subscribe registers observer for all following events. The returned
// function unsubscribes it and may be called more than once.
func (conversation *Conversation) Subscribe(observer Observer) (unsubscribe func()) {
	conversation.mu.Lock()
	conversation.nextObserverID++
	id := conversation.nextObserverID
	conversation.observers = append(conversation.observers, subscription{id: id, observer: observer})
	conversation.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			conversation.mu.Lock()
			defer conversation.mu.Unlock()
			for i, entry := range conversation.observers {
				if entry.id == id {
					conversation.observers = append(conversation.observers[:i:i], conversation.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// RunChatCompletion appends the user's text and runs completion rounds
// until no called function asks for feedback or MaxFeedback follow-up
// rounds have run.
//
// A failed completion request marks the active assistant message as an
// error and aborts the turn with that error. Canceling ctx aborts the
// stream and any handler being awaited.
func (conversation *Conversation) RunChatCompletion(ctx context.Context, text string) error {
	if !conversation.running.CompareAndSwap(false, true) {
		return ErrTurnInProgress
	}
	defer conversation.running.Store(false)

	user := conversation.newMessage(llm.RoleUser)
	user.Content = text
	user.Status = llm.StatusSuccess
	user.NumTokens = conversation.adapter.CountTokens(*user)
	conversation.appendMessage(user)

	maxIterations := conversation.config.MaxFeedback + 1
	functionCall := llm.FunctionCallAuto

	for iteration := 0; iteration < maxIterations; iteration++ {
		conversation.logger.Debug("starting completion round",
			"iteration", iteration,
			"max_iterations", maxIterations,
			"function_call", functionCall,
		)

		prompt, functions := conversation.buildPrompt()
		placeholder := conversation.newMessage(llm.RoleAssistant)
		conversation.appendMessage(placeholder)

		newMessages, err := conversation.stream(ctx, QueryParams{
			Messages:     prompt,
			Functions:    functions,
			FunctionCall: functionCall,
			MaxTokens:    conversation.config.MaxTokens,
			Temperature:  conversation.config.Temperature,
		}, placeholder)
		if err != nil {
			return err
		}

		newMessages = conversation.discardEmpty(newMessages)

		feedback, forceText, err := conversation.settle(ctx, newMessages)
		if err != nil {
			return err
		}
		if forceText {
			functionCall = llm.FunctionCallNone
		}
		if !feedback {
			break
		}
	}

	conversation.logger.Debug("chat completion finished")
	return nil
}

// buildPrompt returns the system messages followed by copies of the
// history, and the advertised functions sorted by name.
func (conversation *Conversation) buildPrompt() ([]llm.Message, []llm.Function) {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()

	prompt := []llm.Message{conversation.instructions}
	if conversation.formatting != nil {
		prompt = append(prompt, *conversation.formatting)
	}
	if info, ok := conversation.infoMessage(); ok {
		prompt = append(prompt, info)
	}
	for _, message := range conversation.messages {
		prompt = append(prompt, message.Copy())
	}

	names := make([]string, 0, len(conversation.functions))
	for name := range conversation.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	functions := make([]llm.Function, len(names))
	for i, name := range names {
		functions[i] = conversation.functions[name].wire()
	}
	return prompt, functions
}

// infoMessage renders the registered snapshots into one system
// message. Caller must hold mu.
func (conversation *Conversation) infoMessage() (llm.Message, bool) {
	if len(conversation.info) == 0 {
		return llm.Message{}, false
	}
	lines := make([]string, 0, len(conversation.info))
	for _, snapshot := range conversation.info {
		encoded, err := json.Marshal(snapshot.data)
		if err != nil {
			conversation.logger.Warn("info snapshot is not JSON-serializable",
				"description", snapshot.description,
				"error", err,
			)
			encoded = []byte(fmt.Sprintf("%q", fmt.Sprint(snapshot.data)))
		}
		lines = append(lines, snapshot.description+": "+string(encoded))
	}
	sort.Strings(lines)

	message := llm.NewMessage(llm.RoleSystem, conversation.config.Clock.Now())
	message.Content = infoPrefix + strings.Join(lines, "\n")
	message.Status = llm.StatusSuccess
	return message, true
}

// stream runs one completion request and routes its events onto the
// assistant messages of this round, starting with placeholder.
// Returns the round's messages in order.
func (conversation *Conversation) stream(ctx context.Context, params QueryParams, placeholder *llm.Message) ([]*llm.Message, error) {
	newMessages := []*llm.Message{placeholder}

	completion, err := conversation.adapter.Query(ctx, params)
	if err != nil {
		conversation.fail(placeholder, err)
		return nil, err
	}
	defer completion.Close()

	for {
		active := newMessages[len(newMessages)-1]

		if err := ctx.Err(); err != nil {
			conversation.fail(active, err)
			return nil, err
		}

		event, err := completion.Next()
		if err == io.EOF {
			conversation.publish(Event{Type: EventEnd})
			return newMessages, nil
		}
		if err != nil {
			conversation.fail(active, err)
			return nil, err
		}

		switch event.Type {
		case llm.EventPartial:
			if active.Content != "" {
				conversation.update(active, func(message *llm.Message) {
					message.Status = llm.StatusSuccess
					message.NumTokens = conversation.adapter.CountTokens(*message)
				})
				active = conversation.newMessage(llm.RoleAssistant)
				newMessages = append(newMessages, active)
				conversation.pushMessage(active)
			}
			conversation.publish(Event{Type: EventPartial, Name: event.Name, Arguments: event.Arguments})
			conversation.update(active, func(message *llm.Message) {
				message.Status = llm.StatusPartial
			})

		case llm.EventFunction:
			conversation.publish(Event{Type: EventFunction, Call: event.Call})
			conversation.update(active, func(message *llm.Message) {
				message.FunctionCall = event.Call
			})

		case llm.EventContent:
			if active.FunctionCall != nil {
				active = conversation.newMessage(llm.RoleAssistant)
				newMessages = append(newMessages, active)
				conversation.pushMessage(active)
			}
			conversation.publish(Event{Type: EventContent, Content: event.Content})
			conversation.update(active, func(message *llm.Message) {
				message.Content += event.Content
			})
		}
	}
}

// fail marks message as the failed end of a completion and publishes
// the error.
func (conversation *Conversation) fail(message *llm.Message, err error) {
	conversation.logger.Debug("chat completion failed", "error", err)
	conversation.publish(Event{Type: EventError, Err: err})
	conversation.update(message, func(message *llm.Message) {
		message.Status = llm.StatusError
		message.Content = "Error: " + err.Error()
	})
}

// discardEmpty removes the round's messages that ended with neither
// content nor a function call, and returns the rest.
func (conversation *Conversation) discardEmpty(newMessages []*llm.Message) []*llm.Message {
	kept := newMessages[:0:0]
	for _, message := range newMessages {
		if message.Content != "" || message.FunctionCall != nil {
			kept = append(kept, message)
			continue
		}

		conversation.logger.Debug("removing empty message", "id", message.ID)
		conversation.mu.Lock()
		for i, candidate := range conversation.messages {
			if candidate == message {
				conversation.messages = append(conversation.messages[:i:i], conversation.messages[i+1:]...)
				break
			}
		}
		var last *llm.Message
		if count := len(conversation.messages); count > 0 {
			snapshot := conversation.messages[count-1].Copy()
			last = &snapshot
		}
		conversation.mu.Unlock()

		if last != nil {
			conversation.publish(Event{Type: EventChange, Message: last})
		}
	}
	return kept
}

// settle finalizes the round's messages and runs the handlers of the
// functions they call. It reports whether any function asked for
// another round, and whether the next round must be answered in text.
func (conversation *Conversation) settle(ctx context.Context, newMessages []*llm.Message) (feedback, forceText bool, err error) {
	for _, message := range newMessages {
		numTokens := conversation.adapter.CountTokens(*message)

		if message.FunctionCall == nil {
			conversation.update(message, func(message *llm.Message) {
				message.Status = llm.StatusSuccess
				message.NumTokens = numTokens
			})
			continue
		}

		call := message.FunctionCall
		conversation.mu.Lock()
		definition, found := conversation.functions[call.Name]
		conversation.mu.Unlock()

		if !found {
			conversation.logger.Warn("model called an unregistered function",
				"error", fmt.Errorf("%w: %s", ErrUnknownFunction, call.Name))
			conversation.update(message, func(message *llm.Message) {
				message.Status = llm.StatusError
				message.NumTokens = numTokens
			})
			conversation.appendFunctionResult(call.Name, llm.StatusError,
				fmt.Sprintf("Error: Function %s not found.", call.Name), nil)
			continue
		}

		conversation.logger.Debug("calling function", "function", call.Name)
		result, handlerErr := conversation.invoke(ctx, definition, call.Copy().Arguments)
		var content string
		if handlerErr == nil {
			content, handlerErr = serializeResult(result)
		}

		if handlerErr != nil {
			conversation.logger.Debug("function failed", "function", call.Name, "error", handlerErr)
			conversation.update(message, func(message *llm.Message) {
				message.Status = llm.StatusError
				message.NumTokens = numTokens
			})
			conversation.appendFunctionResult(call.Name, llm.StatusError, "Error: "+handlerErr.Error(), nil)
		} else {
			conversation.update(message, func(message *llm.Message) {
				message.Status = llm.StatusSuccess
				message.NumTokens = numTokens
			})
			conversation.appendFunctionResult(call.Name, llm.StatusSuccess, content, result)
		}

		switch definition.feedback() {
		case FeedbackAuto:
			feedback = true
		case FeedbackText:
			feedback = true
			forceText = true
		}

		if err := ctx.Err(); err != nil {
			return false, false, err
		}
	}
	return feedback, forceText, nil
}

// invoke runs the handler and waits for it or for ctx.
func (conversation *Conversation) invoke(ctx context.Context, definition FunctionDefinition, arguments map[string]any) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := definition.Handler(ctx, arguments)
		done <- outcome{result: result, err: err}
	}()

	select {
	case result := <-done:
		return result.result, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// serializeResult renders a handler result as message content:
// strings verbatim, anything else as JSON.
func serializeResult(result any) (string, error) {
	if text, ok := result.(string); ok {
		return text, nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("serializing result: %w", err)
	}
	return string(encoded), nil
}

func (conversation *Conversation) appendFunctionResult(name string, status llm.Status, content string, result any) {
	message := conversation.newMessage(llm.RoleFunction)
	message.Name = name
	message.Status = status
	message.Content = content
	message.Result = result
	message.NumTokens = conversation.adapter.CountTokens(*message)
	conversation.appendMessage(message)
}

func (conversation *Conversation) newMessage(role llm.Role) *llm.Message {
	message := llm.NewMessage(role, conversation.config.Clock.Now())
	return &message
}

// pushMessage appends message to the history without publishing.
func (conversation *Conversation) pushMessage(message *llm.Message) {
	conversation.mu.Lock()
	defer conversation.mu.Unlock()
	conversation.messages = append(conversation.messages, message)
}

// appendMessage appends message to the history and publishes it.
func (conversation *Conversation) appendMessage(message *llm.Message) {
	conversation.pushMessage(message)
	conversation.update(message, nil)
}

// update applies mutate to message and publishes a copy of the
// result.
func (conversation *Conversation) update(message *llm.Message, mutate func(*llm.Message)) {
	conversation.mu.Lock()
	if mutate != nil {
		mutate(message)
	}
	snapshot := message.Copy()
	conversation.mu.Unlock()
	conversation.publish(Event{Type: EventChange, Message: &snapshot})
}

// publish delivers event to every observer, each with its own copies
// of the message and call. Observers run without mu held.
func (conversation *Conversation) publish(event Event) {
	conversation.mu.Lock()
	observers := make([]subscription, len(conversation.observers))
	copy(observers, conversation.observers)
	conversation.mu.Unlock()

	for _, entry := range observers {
		delivered := event
		if event.Message != nil {
			message := event.Message.Copy()
			delivered.Message = &message
		}
		delivered.Call = event.Call.Copy()
		entry.observer.OnEvent(delivered)
	}
}
