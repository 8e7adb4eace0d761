package funnel

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"funnelboard_backend/internal/chatwoot"
	"funnelboard_backend/platform/apperr"
	"funnelboard_backend/platform/config"
	"funnelboard_backend/platform/logger"
)

// fakeAPI is an in-memory upstream recording every call the mover issues.
type fakeAPI struct {
	mu            sync.Mutex
	attrs         map[string]map[string]interface{}
	contactLabels map[string][]string
	conversations map[string][]chatwoot.RawConversation
	convLabels    map[string][]string

	failOn  string // "op:id" of the call that should fail
	failErr error
	calls   []string // "op:id[:detail]" in issue order

	started chan struct{} // signaled on first attribute write, when set
	block   chan struct{} // first attribute write waits on this, when set
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		attrs:         make(map[string]map[string]interface{}),
		contactLabels: make(map[string][]string),
		conversations: make(map[string][]chatwoot.RawConversation),
		convLabels:    make(map[string][]string),
	}
}

func (f *fakeAPI) record(op, id, detail string) error {
	f.mu.Lock()
	entry := op + ":" + id
	if detail != "" {
		entry += ":" + detail
	}
	f.calls = append(f.calls, entry)
	shouldFail := f.failOn == op+":"+id
	f.mu.Unlock()
	if shouldFail {
		return f.failErr
	}
	return nil
}

func (f *fakeAPI) UpdateContactAttributes(_ context.Context, contactID string, attrs map[string]interface{}) error {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	if err := f.record("update_attrs", contactID, fmt.Sprintf("%v", attrs["funil_de_vendas"])); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrs[contactID] == nil {
		f.attrs[contactID] = make(map[string]interface{})
	}
	for k, v := range attrs {
		f.attrs[contactID][k] = v
	}
	return nil
}

func (f *fakeAPI) ContactLabels(_ context.Context, contactID string) ([]string, error) {
	if err := f.record("get_contact_labels", contactID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.contactLabels[contactID]...), nil
}

func (f *fakeAPI) SetContactLabels(_ context.Context, contactID string, labels []string) ([]string, error) {
	if err := f.record("set_contact_labels", contactID, strings.Join(labels, ",")); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactLabels[contactID] = append([]string(nil), labels...)
	return labels, nil
}

func (f *fakeAPI) ContactConversations(_ context.Context, contactID string) ([]chatwoot.RawConversation, error) {
	if err := f.record("list_conversations", contactID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatwoot.RawConversation(nil), f.conversations[contactID]...), nil
}

func (f *fakeAPI) ConversationLabels(_ context.Context, conversationID string) ([]string, error) {
	if err := f.record("get_conv_labels", conversationID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.convLabels[conversationID]...), nil
}

func (f *fakeAPI) SetConversationLabels(_ context.Context, conversationID string, labels []string) ([]string, error) {
	if err := f.record("set_conv_labels", conversationID, strings.Join(labels, ",")); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convLabels[conversationID] = append([]string(nil), labels...)
	return labels, nil
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testService(api ContactAPI, strategy string) *Service {
	return NewService(api, strategy, logger.New("development"))
}

func strPtr(s string) *string { return &s }

func TestMove_HappyPathMerge(t *testing.T) {
	api := newFakeAPI()
	api.contactLabels["42"] = []string{"vip", "novo"}
	api.conversations["42"] = []chatwoot.RawConversation{
		{ID: "9", Status: "open", UpdatedAt: 100},
		{ID: "7", Status: "resolved", UpdatedAt: 200},
	}
	api.convLabels["9"] = []string{"novo"}

	svc := testService(api, config.LabelStrategyMerge)
	result, err := svc.Move(context.Background(), "42", "Proposta", strPtr("Novo"))
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}

	if !result.OK || result.Stage != "Proposta" || result.Label != "proposta" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := api.attrs["42"]["funil_de_vendas"]; got != "Proposta" {
		t.Fatalf("attribute = %v, want Proposta", got)
	}
	if want := []string{"vip", "proposta"}; !reflect.DeepEqual(api.contactLabels["42"], want) {
		t.Fatalf("contact labels = %v, want %v", api.contactLabels["42"], want)
	}
	if want := []string{"proposta"}; !reflect.DeepEqual(api.convLabels["9"], want) {
		t.Fatalf("conversation labels = %v, want %v", api.convLabels["9"], want)
	}
	if len(result.Conversations) != 1 || result.Conversations[0].ConversationID != "9" {
		t.Fatalf("unexpected conversations in result: %+v", result.Conversations)
	}
	// The resolved conversation is skipped because an open one exists.
	if _, touched := api.convLabels["7"]; touched {
		t.Fatalf("resolved conversation 7 should not have been labeled")
	}
}

func TestMove_HappyPathReplace(t *testing.T) {
	api := newFakeAPI()
	api.contactLabels["42"] = []string{"vip", "novo"}

	svc := testService(api, config.LabelStrategyReplace)
	result, err := svc.Move(context.Background(), "42", "Proposta", strPtr("Novo"))
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}

	if want := []string{"proposta"}; !reflect.DeepEqual(api.contactLabels["42"], want) {
		t.Fatalf("contact labels = %v, want exactly %v", api.contactLabels["42"], want)
	}
	if want := []string{"proposta"}; !reflect.DeepEqual(result.Labels, want) {
		t.Fatalf("result labels = %v, want %v", result.Labels, want)
	}
}

func TestMove_EmptyStageMapsToSentinel(t *testing.T) {
	api := newFakeAPI()
	svc := testService(api, config.LabelStrategyMerge)

	result, err := svc.Move(context.Background(), "42", "   ", nil)
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if result.Label != "sem_funil" {
		t.Fatalf("label = %q, want sem_funil", result.Label)
	}
	if result.Stage != "Sem funil" {
		t.Fatalf("stage = %q, want Sem funil", result.Stage)
	}
	// The attribute stores the raw (empty) value, never the sentinel text.
	if got := api.attrs["42"]["funil_de_vendas"]; got != "" {
		t.Fatalf("attribute = %v, want empty", got)
	}
}

func TestMove_FailureTriggersRevert(t *testing.T) {
	api := newFakeAPI()
	api.contactLabels["42"] = []string{"novo"}
	api.conversations["42"] = []chatwoot.RawConversation{
		{ID: "8", Status: "open", UpdatedAt: 300},
		{ID: "9", Status: "open", UpdatedAt: 100},
	}
	api.failOn = "set_conv_labels:9"
	api.failErr = &chatwoot.APIError{Status: 500, Data: map[string]interface{}{"error": "boom"}}

	svc := testService(api, config.LabelStrategyMerge)
	_, err := svc.Move(context.Background(), "42", "Proposta", strPtr("Novo"))
	if err == nil {
		t.Fatalf("expected move to fail")
	}

	// The caller sees the original forward failure, not a revert error.
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Kind != apperr.KindUpstream {
		t.Fatalf("error = %#v, want upstream error", err)
	}
	if appErr.UpstreamStatus != 500 {
		t.Fatalf("upstream status = %d, want 500", appErr.UpstreamStatus)
	}
	if details, ok := appErr.Details.(map[string]interface{}); !ok || details["error"] != "boom" {
		t.Fatalf("details = %#v, want original upstream body", appErr.Details)
	}

	// Contact attribute and labels were re-written for the previous stage.
	if got := api.attrs["42"]["funil_de_vendas"]; got != "Novo" {
		t.Fatalf("attribute after revert = %v, want Novo", got)
	}
	if want := []string{"novo"}; !reflect.DeepEqual(api.contactLabels["42"], want) {
		t.Fatalf("contact labels after revert = %v, want %v", api.contactLabels["42"], want)
	}
	// Conversation 8 was labeled before the failure and reverted after it.
	if want := []string{"novo"}; !reflect.DeepEqual(api.convLabels["8"], want) {
		t.Fatalf("conversation 8 labels after revert = %v, want %v", api.convLabels["8"], want)
	}

	calls := api.callLog()
	revertAttr := false
	for _, call := range calls {
		if call == "update_attrs:42:Novo" {
			revertAttr = true
		}
	}
	if !revertAttr {
		t.Fatalf("revert did not re-write the previous attribute; calls: %v", calls)
	}
}

func TestMove_NoRevertWithoutPreviousStage(t *testing.T) {
	api := newFakeAPI()
	api.failOn = "set_contact_labels:42"
	api.failErr = &chatwoot.APIError{Status: 422, Data: map[string]interface{}{"error": "nope"}}

	svc := testService(api, config.LabelStrategyMerge)
	_, err := svc.Move(context.Background(), "42", "Proposta", nil)
	if err == nil {
		t.Fatalf("expected move to fail")
	}

	for _, call := range api.callLog() {
		if call == "update_attrs:42:" || strings.HasPrefix(call, "update_attrs:42:Novo") {
			t.Fatalf("revert ran without a previous stage; calls: %v", api.callLog())
		}
	}
	// Exactly one attribute write: the forward one.
	attrWrites := 0
	for _, call := range api.callLog() {
		if strings.HasPrefix(call, "update_attrs:") {
			attrWrites++
		}
	}
	if attrWrites != 1 {
		t.Fatalf("attribute writes = %d, want 1; calls: %v", attrWrites, api.callLog())
	}
}

func TestMove_NoCrossContactLeakage(t *testing.T) {
	api := newFakeAPI()
	api.contactLabels["A"] = []string{"x"}
	api.contactLabels["B"] = []string{"y"}
	api.conversations["A"] = []chatwoot.RawConversation{{ID: "a1", Status: "open", UpdatedAt: 10}}
	api.conversations["B"] = []chatwoot.RawConversation{{ID: "b1", Status: "open", UpdatedAt: 10}}

	svc := testService(api, config.LabelStrategyMerge)
	if _, err := svc.Move(context.Background(), "A", "Proposta", strPtr("Novo")); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	for _, call := range api.callLog() {
		if strings.Contains(call, ":B") || strings.Contains(call, ":b1") {
			t.Fatalf("move of contact A touched contact B: %v", call)
		}
	}
}

func TestMove_ConcurrentMoveSameContactRejected(t *testing.T) {
	api := newFakeAPI()
	api.started = make(chan struct{}, 1)
	api.block = make(chan struct{})

	svc := testService(api, config.LabelStrategyMerge)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Move(context.Background(), "42", "Proposta", nil)
		done <- err
	}()
	<-api.started

	_, err := svc.Move(context.Background(), "42", "Análise", nil)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("concurrent move error = %v, want conflict", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first move failed: %v", err)
	}

	// The contact is free again once the first move finishes.
	api.block = nil
	if _, err := svc.Move(context.Background(), "42", "Análise", nil); err != nil {
		t.Fatalf("follow-up move failed: %v", err)
	}
}

func TestMove_RequiresConfiguration(t *testing.T) {
	svc := testService(nil, config.LabelStrategyMerge)
	_, err := svc.Move(context.Background(), "42", "Proposta", nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestMove_RequiresContactID(t *testing.T) {
	svc := testService(newFakeAPI(), config.LabelStrategyMerge)
	_, err := svc.Move(context.Background(), "  ", "Proposta", nil)
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("error = %v, want bad request", err)
	}
}
