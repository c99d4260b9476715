// Package workflow is the order state machine: department stage, task
// hand-off state, workshop delegation, payments and delivery. Apply is pure;
// persistence and notification happen in the caller.
package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"roxtor/backend/internal/domain"
)

type Kind string

const (
	KindReceiveTask         Kind = "receive"
	KindCompleteTask        Kind = "complete"
	KindResetTask           Kind = "reset"
	KindAssignWorkshop      Kind = "assign-workshop"
	KindReceiveFromWorkshop Kind = "receive-from-workshop"
	KindTransferTask        Kind = "transfer"
	KindFinishEntirely      Kind = "finish"
	KindRegisterPayment     Kind = "payment"
	KindMarkDelivered       Kind = "deliver"
)

// Kinds lists every action in board display order.
var Kinds = []Kind{
	KindReceiveTask,
	KindCompleteTask,
	KindResetTask,
	KindAssignWorkshop,
	KindReceiveFromWorkshop,
	KindTransferTask,
	KindFinishEntirely,
	KindRegisterPayment,
	KindMarkDelivered,
}

var (
	ErrUnknownAction              = errors.New("unknown action")
	ErrNotPermitted               = errors.New("action not permitted in current state")
	ErrWorkshopAssignmentRequired = errors.New("order is at the workshop stage and needs a workshop assignment")
	ErrWorkshopRequired           = errors.New("workshop required")
	ErrDepartmentRequired         = errors.New("workshop department required")
	ErrSpecRequired               = errors.New("sewing specification required")
	ErrSpecIncomplete             = errors.New("sewing specification incomplete")
	ErrSpecQuantityMismatch       = errors.New("gender breakdown does not match item quantity")
	ErrUnconfirmed                = errors.New("confirmation required")
	ErrInvalidStage               = errors.New("invalid department stage")
	ErrInvalidAmount              = errors.New("payment amount must be positive")
	ErrInvalidMethod              = errors.New("unknown payment method")
)

// TransitionError reports a rejected action. The order is left untouched.
type TransitionError struct {
	Action Kind
	Stage  domain.OrderStatus
	Task   domain.TaskStatus
	Fields []string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s rejected at %s/%s: %v", e.Action, e.Stage, e.Task, e.Err)
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Action is one requested transition. Only the fields relevant to Kind are
// read; use the constructors below.
type Action struct {
	Kind      Kind
	Workshop  *domain.Workshop
	Spec      *domain.SewingSpec
	Stage     domain.OrderStatus
	AgentID   string
	AgentName string
	Confirmed bool
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
	Reference string
}

func ReceiveTask() Action         { return Action{Kind: KindReceiveTask} }
func CompleteTask() Action        { return Action{Kind: KindCompleteTask} }
func ResetTask() Action           { return Action{Kind: KindResetTask} }
func ReceiveFromWorkshop() Action { return Action{Kind: KindReceiveFromWorkshop} }
func FinishEntirely() Action      { return Action{Kind: KindFinishEntirely} }
func MarkDelivered() Action       { return Action{Kind: KindMarkDelivered} }

// AssignWorkshop delegates to an external workshop. Sewing workshops need a
// spec and confirmed=true once the production request has been sent.
func AssignWorkshop(workshop domain.Workshop, spec *domain.SewingSpec, confirmed bool) Action {
	return Action{Kind: KindAssignWorkshop, Workshop: &workshop, Spec: spec, Confirmed: confirmed}
}

func TransferTask(stage domain.OrderStatus, agentID string, agentName string, confirmed bool) Action {
	return Action{Kind: KindTransferTask, Stage: stage, AgentID: agentID, AgentName: agentName, Confirmed: confirmed}
}

func RegisterPayment(amount decimal.Decimal, method domain.PaymentMethod, reference string) Action {
	return Action{Kind: KindRegisterPayment, Amount: amount, Method: method, Reference: strings.TrimSpace(reference)}
}

type Env struct {
	ActorID string
	Now     time.Time
}

type rule struct {
	// state checks preconditions that depend only on the order.
	state func(o domain.Order) error
	// args checks the action's own input against the order.
	args func(o domain.Order, a Action) ([]string, error)
	// apply mutates a copy of the order and returns the history narration.
	apply func(o *domain.Order, a Action, env Env) string
}

var table = map[Kind]rule{
	KindReceiveTask: {
		state: func(o domain.Order) error {
			if o.TaskStatus != domain.TaskWaiting {
				return ErrNotPermitted
			}
			if o.Status == domain.StatusWorkshop {
				return ErrWorkshopAssignmentRequired
			}
			return nil
		},
		apply: func(o *domain.Order, _ Action, _ Env) string {
			o.TaskStatus = domain.TaskInProgress
			return domain.NarrationTaskReceived
		},
	},
	KindCompleteTask: {
		state: func(o domain.Order) error {
			if o.TaskStatus != domain.TaskInProgress {
				return ErrNotPermitted
			}
			if o.Status == domain.StatusWorkshop && o.AssignedWorkshopID == "" {
				return ErrWorkshopAssignmentRequired
			}
			return nil
		},
		apply: func(o *domain.Order, _ Action, _ Env) string {
			o.TaskStatus = domain.TaskDone
			return domain.NarrationTaskCompleted
		},
	},
	KindResetTask: {
		state: func(o domain.Order) error {
			if o.TaskStatus != domain.TaskInProgress && o.TaskStatus != domain.TaskDone {
				return ErrNotPermitted
			}
			return nil
		},
		apply: func(o *domain.Order, _ Action, _ Env) string {
			o.TaskStatus = domain.TaskWaiting
			return domain.NarrationTaskReset
		},
	},
	KindAssignWorkshop: {
		state: func(o domain.Order) error {
			if o.Status != domain.StatusWorkshop {
				return ErrNotPermitted
			}
			if o.TaskStatus != domain.TaskWaiting && o.TaskStatus != domain.TaskInProgress {
				return ErrNotPermitted
			}
			return nil
		},
		args: checkAssignment,
		apply: func(o *domain.Order, a Action, _ Env) string {
			o.AssignedWorkshopID = a.Workshop.ID
			if a.Workshop.Department == domain.DepartmentSewing {
				o.TaskStatus = domain.TaskExternalProduction
				return domain.NarrateSentToWorkshop(a.Workshop.Name, a.Spec.TotalQuantity())
			}
			o.TaskStatus = domain.TaskInProgress
			return domain.NarrateAssignedToWorkshop(a.Workshop.Name, a.Workshop.DepartmentLabel())
		},
	},
	KindReceiveFromWorkshop: {
		state: func(o domain.Order) error {
			if o.TaskStatus != domain.TaskExternalProduction {
				return ErrNotPermitted
			}
			return nil
		},
		apply: func(o *domain.Order, _ Action, _ Env) string {
			o.TaskStatus = domain.TaskDone
			return domain.NarrationWorkshopReturned
		},
	},
	KindTransferTask: {
		state: func(o domain.Order) error {
			if o.TaskStatus != domain.TaskDone {
				return ErrNotPermitted
			}
			return nil
		},
		args: func(_ domain.Order, a Action) ([]string, error) {
			if !a.Stage.Valid() {
				return nil, ErrInvalidStage
			}
			if !a.Confirmed {
				return nil, ErrUnconfirmed
			}
			return nil, nil
		},
		apply: func(o *domain.Order, a Action, _ Env) string {
			o.Status = a.Stage
			o.AssignedAgentID = strings.TrimSpace(a.AgentID)
			o.AssignedWorkshopID = ""
			o.TaskStatus = domain.TaskWaiting
			return domain.NarrateTransfer(a.Stage, a.AgentName)
		},
	},
	KindFinishEntirely: {
		state: func(domain.Order) error { return nil },
		apply: func(o *domain.Order, _ Action, _ Env) string {
			o.Status = domain.StatusCompleted
			o.TaskStatus = domain.TaskDone
			return domain.NarrationFinished
		},
	},
	KindRegisterPayment: {
		state: func(domain.Order) error { return nil },
		args: func(_ domain.Order, a Action) ([]string, error) {
			if !a.Amount.IsPositive() {
				return nil, ErrInvalidAmount
			}
			if !a.Method.Valid() {
				return nil, ErrInvalidMethod
			}
			return nil, nil
		},
		apply: func(o *domain.Order, a Action, env Env) string {
			o.ApplyPayment(domain.PaymentEvent{
				At:        env.Now,
				AmountUSD: a.Amount,
				Method:    a.Method,
				Reference: a.Reference,
			})
			return domain.NarratePayment(a.Amount, a.Method, a.Reference)
		},
	},
	KindMarkDelivered: {
		state: func(o domain.Order) error {
			if o.Status != domain.StatusCompleted || o.IsDelivered {
				return ErrNotPermitted
			}
			return nil
		},
		apply: func(o *domain.Order, _ Action, _ Env) string {
			o.IsDelivered = true
			return domain.NarrationDelivered
		},
	},
}

// Apply runs one transition. On success the returned order carries exactly
// one new history entry; on failure the input order is returned unchanged
// together with a *TransitionError.
func Apply(order domain.Order, action Action, env Env) (domain.Order, error) {
	r, ok := table[action.Kind]
	if !ok {
		return order, reject(order, action.Kind, nil, ErrUnknownAction)
	}
	if err := r.state(order); err != nil {
		return order, reject(order, action.Kind, nil, err)
	}
	if r.args != nil {
		if fields, err := r.args(order, action); err != nil {
			return order, reject(order, action.Kind, fields, err)
		}
	}
	if env.Now.IsZero() {
		env.Now = time.Now().UTC()
	}

	next := order.Clone()
	narration := r.apply(&next, action, env)
	next.Record(env.Now, env.ActorID, narration)
	return next, nil
}

// Available lists the actions whose state preconditions hold for order.
// Actions that also need input (workshop, transfer, payment) may still be
// rejected by Apply for bad arguments.
func Available(order domain.Order) []Kind {
	kinds := make([]Kind, 0, len(Kinds))
	for _, kind := range Kinds {
		if table[kind].state(order) == nil {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func reject(order domain.Order, kind Kind, fields []string, err error) error {
	return &TransitionError{
		Action: kind,
		Stage:  order.Status,
		Task:   order.TaskStatus,
		Fields: fields,
		Err:    err,
	}
}

var specValidator = newSpecValidator()

func newSpecValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func checkAssignment(o domain.Order, a Action) ([]string, error) {
	if a.Workshop == nil || strings.TrimSpace(a.Workshop.ID) == "" {
		return nil, ErrWorkshopRequired
	}
	w := a.Workshop
	if !w.Department.Valid() {
		return nil, ErrDepartmentRequired
	}
	if w.Department == domain.DepartmentOther && strings.TrimSpace(w.CustomDepartment) == "" {
		return nil, ErrDepartmentRequired
	}
	if w.Department != domain.DepartmentSewing {
		return nil, nil
	}

	if a.Spec == nil {
		return nil, ErrSpecRequired
	}
	spec := normalizeSpec(*a.Spec)
	if err := specValidator.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace())
			}
			return fields, ErrSpecIncomplete
		}
		return nil, ErrSpecIncomplete
	}
	if want := o.QuantityFor(spec.ProductName); spec.TotalQuantity() != want {
		return []string{fmt.Sprintf("genders: %d != %d", spec.TotalQuantity(), want)}, ErrSpecQuantityMismatch
	}
	if !a.Confirmed {
		return nil, ErrUnconfirmed
	}
	return nil, nil
}

func normalizeSpec(spec domain.SewingSpec) domain.SewingSpec {
	spec.ProductName = strings.TrimSpace(spec.ProductName)
	spec.Fabric = strings.TrimSpace(spec.Fabric)
	spec.Color = strings.TrimSpace(spec.Color)
	spec.Sizes = strings.TrimSpace(spec.Sizes)
	genders := make([]domain.GenderQuantity, len(spec.Genders))
	for i, g := range spec.Genders {
		genders[i] = domain.GenderQuantity{Gender: strings.TrimSpace(g.Gender), Quantity: g.Quantity}
	}
	spec.Genders = genders
	return spec
}

// CheckAssignment runs the state and argument rules of a workshop
// assignment without applying it, so callers can refuse before any message
// reaches the workshop. Sewing workshops also need a complete spec.
func CheckAssignment(order domain.Order, workshop domain.Workshop, spec *domain.SewingSpec) error {
	a := AssignWorkshop(workshop, spec, true)
	if err := table[KindAssignWorkshop].state(order); err != nil {
		return reject(order, KindAssignWorkshop, nil, err)
	}
	if fields, err := checkAssignment(order, a); err != nil {
		return reject(order, KindAssignWorkshop, fields, err)
	}
	return nil
}
