package entry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/model"
)

// State of a single submission attempt.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Validation and state errors.  Validation errors are raised before any
// backend call.
var (
	ErrBatchRequired   = errors.New("a batch id is required to add data to an existing batch")
	ErrFieldRequired   = errors.New("field is required")
	ErrInvalidDate     = errors.New("harvest date must be formatted YYYY-MM-DD")
	ErrHarvestInFuture = errors.New("harvest date cannot be in the future")
	ErrBusy            = errors.New("a submission is already in progress")
	ErrAlreadyDone     = errors.New("entry already submitted; reset to add another")
)

// Fallback messages when the backend gives no text of its own.
const (
	msgSubmitFailed = "Data submission failed. Please try again."
	msgBatchFailed  = "Batch creation failed. Please try again."
)

// FieldError names the form field a validation error refers to.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// API is the slice of the backend the flow calls.
type API interface {
	CreateBatch(ctx context.Context, userID model.ID) (string, error)
	SubmitData(ctx context.Context, userID model.ID, sub model.Submission) (model.SubmitAck, error)
}

// Option customizes a Flow.
type Option func(*Flow)

// WithIDs replaces the identifier generator (tests use a counter).
func WithIDs(ids IDFunc) Option { return func(f *Flow) { f.ids = ids } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(f *Flow) { f.now = now } }

// Flow drives one entry form through Idle -> Submitting -> Succeeded|Failed.
type Flow struct {
	api         API
	user        model.User
	targetBatch string
	ids         IDFunc
	now         func() time.Time

	mu           sync.Mutex
	state        State
	form         Form
	createdBatch string
	result       model.ViewModel
	message      string
}

// NewFlow prepares a flow for user.  initialBatchID is set when the user is
// adding data to an existing batch.
func NewFlow(api API, user model.User, initialBatchID string, opts ...Option) *Flow {
	f := &Flow{api: api, user: user, targetBatch: initialBatchID, ids: NewUUID, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	f.form = NewForm(f.ids)
	return f
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Form returns the current form value.
func (f *Flow) Form() Form {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// TargetBatch is the existing batch the flow adds to, "" for a new one.
func (f *Flow) TargetBatch() string { return f.targetBatch }

// Result returns the view model of a successful submission.
func (f *Flow) Result() (model.ViewModel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.state == StateSucceeded
}

// Message is the human-readable reason of the last failure.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// SetForm replaces the form wholesale.  Editing after a failure returns the
// flow to Idle.
func (f *Flow) SetForm(form Form) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateSubmitting:
		return ErrBusy
	case StateSucceeded:
		return ErrAlreadyDone
	}
	f.form = form
	f.state = StateIdle
	f.message = ""
	return nil
}

// Set updates one field; it is SetForm(Form().With(field, value)).
func (f *Flow) Set(field, value string) error {
	form, err := f.Form().With(field, value)
	if err != nil {
		return err
	}
	return f.SetForm(form)
}

// Reset starts a new entry after a terminal state ("add another entry").
func (f *Flow) Reset() error { return f.restart() }

// Cancel abandons the current entry.
func (f *Flow) Cancel() error { return f.restart() }

func (f *Flow) restart() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSubmitting {
		return ErrBusy
	}
	f.state = StateIdle
	f.form = NewForm(f.ids)
	f.createdBatch = ""
	f.result = model.ViewModel{}
	f.message = ""
	return nil
}

// Submit resolves the target batch and sends the form.  Farmers without a
// target batch get a new one from the backend; anyone else must supply one.
// A failed attempt keeps every field so it can be resubmitted directly.
func (f *Flow) Submit(ctx context.Context) (model.ViewModel, error) {
	f.mu.Lock()
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return model.ViewModel{}, ErrBusy
	case StateSucceeded:
		f.mu.Unlock()
		return model.ViewModel{}, ErrAlreadyDone
	}
	f.state = StateSubmitting
	f.message = ""
	form := f.form
	f.mu.Unlock()

	if f.targetBatch == "" && !f.user.IsFarmer() {
		return f.fail(ErrBatchRequired, "")
	}
	if err := validate(form, f.now()); err != nil {
		return f.fail(err, "")
	}
	batchID, err := f.resolveBatch(ctx)
	if err != nil {
		return f.fail(err, apiclient.Message(err, msgBatchFailed))
	}

	attrs := form.Attributes()
	ack, err := f.api.SubmitData(ctx, f.user.ID, model.Submission{
		FarmAttributes: attrs,
		BatchID:        batchID,
		EventID:        form.EventID,
	})
	if err != nil {
		return f.fail(err, apiclient.Message(err, msgSubmitFailed))
	}

	vm := model.ViewModel{
		ID:                  form.EventID,
		FarmID:              attrs.FarmID,
		FarmName:            attrs.FarmName,
		LocationCoordinates: attrs.LocationCoordinates,
		HarvestDate:         attrs.HarvestDate,
		ProductType:         attrs.ProductType,
		BatchID:             batchID,
		FarmingMethod:       attrs.FarmingMethod,
		Certifications:      attrs.Certifications,
		Timestamp:           f.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Status:              ack.Status,
		TxHash:              ack.TxHash,
	}
	if ack.EventID != "" {
		vm.ID = ack.EventID.String()
	}
	if vm.Status == "" {
		vm.Status = model.StatusVerified
	}
	if vm.TxHash == "" {
		vm.TxHash = model.PendingTxHash
	}

	f.mu.Lock()
	f.state = StateSucceeded
	f.result = vm
	f.mu.Unlock()
	return vm, nil
}

// resolveBatch picks the batch the record goes into.  A batch created for a
// farmer is remembered so that a retry does not create a second one.
func (f *Flow) resolveBatch(ctx context.Context) (string, error) {
	if f.targetBatch != "" {
		return f.targetBatch, nil
	}
	f.mu.Lock()
	created := f.createdBatch
	f.mu.Unlock()
	if created != "" {
		return created, nil
	}
	id, err := f.api.CreateBatch(ctx, f.user.ID)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.createdBatch = id
	f.mu.Unlock()
	return id, nil
}

func (f *Flow) fail(err error, msg string) (model.ViewModel, error) {
	if msg == "" {
		msg = err.Error()
	}
	f.mu.Lock()
	f.state = StateFailed
	f.message = msg
	f.mu.Unlock()
	return model.ViewModel{}, err
}

// validate checks required fields and that the harvest date is a real
// calendar date no later than today.
func validate(form Form, now time.Time) error {
	attrs := form.Attributes()
	required := []struct{ name, value string }{
		{FieldFarmName, attrs.FarmName},
		{FieldLocationCoordinates, attrs.LocationCoordinates},
		{FieldHarvestDate, attrs.HarvestDate},
		{FieldProductType, attrs.ProductType},
		{FieldFarmingMethod, attrs.FarmingMethod},
		{FieldCertifications, attrs.Certifications},
	}
	for _, r := range required {
		if r.value == "" {
			return &FieldError{Field: r.name, Err: ErrFieldRequired}
		}
	}
	harvest, err := time.ParseInLocation("2006-01-02", attrs.HarvestDate, now.Location())
	if err != nil {
		return &FieldError{Field: FieldHarvestDate, Err: ErrInvalidDate}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if harvest.After(today) {
		return &FieldError{Field: FieldHarvestDate, Err: ErrHarvestInFuture}
	}
	return nil
}
