// Package onboarding runs the step-by-step onboarding wizard of a new employee.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"staffdesk/internal/employees"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var (
	ErrUnknownStep = errors.New("onboarding: unknown step")
	ErrStepLocked  = errors.New("onboarding: step is not reachable yet")
	ErrFinished    = errors.New("onboarding: already completed")
)

// StepError lists why the active step cannot be left.
type StepError struct {
	Step   string              `json:"step"`
	Fields []models.FieldError `json:"fields"`
}

func (e *StepError) Error() string {
	return fmt.Sprintf("onboarding: step %s is incomplete (%d problems)", e.Step, len(e.Fields))
}

// sensitive keys are written to the employee (encrypted) and never kept in progress data.
var sensitive = []string{"ssn", "caqhPassword", "nppesPassword"}

type Wizard struct {
	steps     []Step
	progress  *repo.OnboardingStore
	employees *employees.Service
	tx        *repo.Transactor
	now       func() time.Time
}

func NewWizard(steps []Step, progress *repo.OnboardingStore, emps *employees.Service, tx *repo.Transactor) *Wizard {
	return &Wizard{steps: steps, progress: progress, employees: emps, tx: tx, now: time.Now}
}

type StepView struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Current   bool   `json:"current"`
}

type View struct {
	EmployeeID  uint                    `json:"employeeId"`
	Status      models.OnboardingStatus `json:"status"`
	CurrentStep int                     `json:"currentStep"`
	CurrentKey  string                  `json:"currentKey"`
	Steps       []StepView              `json:"steps"`
	Data        map[string]any          `json:"data"`
	CompletedAt *time.Time              `json:"completedAt"`
}

func (w *Wizard) index(key string) int {
	return slices.IndexFunc(w.steps, func(s Step) bool { return s.Key == key })
}

func (w *Wizard) load(ctx context.Context, employeeID uint) (*models.Employee, *models.OnboardingProgress, error) {
	emp, err := w.employees.Get(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	p, err := w.progress.GetOrCreate(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	if p.CurrentStep >= len(w.steps) {
		p.CurrentStep = len(w.steps) - 1
	}
	return emp, p, nil
}

func (w *Wizard) view(emp *models.Employee, p *models.OnboardingProgress) *View {
	v := &View{
		EmployeeID:  emp.ID,
		Status:      emp.OnboardingStatus,
		CurrentStep: p.CurrentStep,
		CurrentKey:  w.steps[p.CurrentStep].Key,
		Data:        map[string]any(p.Data),
		CompletedAt: p.CompletedAt,
	}
	for i, s := range w.steps {
		v.Steps = append(v.Steps, StepView{
			Key:       s.Key,
			Title:     s.Title,
			Completed: slices.Contains(p.CompletedSteps, s.Key),
			Current:   i == p.CurrentStep,
		})
	}
	return v
}

func (w *Wizard) Get(ctx context.Context, employeeID uint) (*View, error) {
	emp, p, err := w.load(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return w.view(emp, p), nil
}

// SaveStep stores data for a reachable step without validating completeness.
// Profile step data is applied to the employee record right away. Saving a
// completed step reopens it and every step after it.
func (w *Wizard) SaveStep(ctx context.Context, employeeID uint, key string, data map[string]any) (*View, error) {
	i := w.index(key)
	if i < 0 {
		return nil, ErrUnknownStep
	}
	emp, p, err := w.load(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if p.CompletedAt != nil {
		return nil, ErrFinished
	}
	if i > p.CurrentStep {
		return nil, ErrStepLocked
	}

	err = w.tx.Within(ctx, func(ctx context.Context) error {
		if w.steps[i].Profile {
			var patch employees.Patch
			raw, err := json.Marshal(data)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &patch); err != nil {
				return models.NewFieldError(key, "invalid step data: %v", err)
			}
			patch.Status = nil
			if emp, err = w.employees.Update(ctx, employeeID, patch); err != nil {
				return err
			}
		}
		kept := make(map[string]any, len(data))
		for k, v := range data {
			if !slices.Contains(sensitive, k) {
				kept[k] = v
			}
		}
		p.Data[key] = kept
		w.reopen(p, i)
		if err := w.start(ctx, emp); err != nil {
			return err
		}
		return w.progress.Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return w.view(emp, p), nil
}

// Next validates the active step and moves past it. Passing the last step
// completes onboarding.
func (w *Wizard) Next(ctx context.Context, employeeID uint) (*View, error) {
	emp, p, err := w.load(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if p.CompletedAt != nil {
		return nil, ErrFinished
	}
	step := w.steps[p.CurrentStep]
	if ok, fes := w.validate(ctx, emp, p, p.CurrentStep); !ok {
		return nil, &StepError{Step: step.Key, Fields: fes}
	}
	last := p.CurrentStep == len(w.steps)-1
	if last {
		// Records behind earlier steps may have changed since they passed.
		for i := range w.steps[:p.CurrentStep] {
			if ok, fes := w.validate(ctx, emp, p, i); !ok {
				w.reopen(p, i)
				if err := w.progress.Save(ctx, p); err != nil {
					return nil, err
				}
				return nil, &StepError{Step: w.steps[i].Key, Fields: fes}
			}
		}
	}

	if !slices.Contains(p.CompletedSteps, step.Key) {
		p.CompletedSteps = append(p.CompletedSteps, step.Key)
	}
	err = w.tx.Within(ctx, func(ctx context.Context) error {
		if last {
			now := w.now().UTC()
			p.CompletedAt = &now
			emp.OnboardingStatus = models.OnboardingCompleted
			if err := w.employees.Save(ctx, emp); err != nil {
				return err
			}
		} else {
			p.CurrentStep++
			if err := w.start(ctx, emp); err != nil {
				return err
			}
		}
		return w.progress.Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if last {
		logs.Logger.WithField("employee_id", emp.ID).Info("onboarding completed")
	}
	return w.view(emp, p), nil
}

// GoTo moves back to an earlier step or stays on the current one. Forward
// moves go through Next so every step is validated again.
func (w *Wizard) GoTo(ctx context.Context, employeeID uint, key string) (*View, error) {
	i := w.index(key)
	if i < 0 {
		return nil, ErrUnknownStep
	}
	emp, p, err := w.load(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if p.CompletedAt != nil {
		return nil, ErrFinished
	}
	if i > p.CurrentStep {
		return nil, ErrStepLocked
	}
	p.CurrentStep = i
	if err := w.progress.Save(ctx, p); err != nil {
		return nil, err
	}
	return w.view(emp, p), nil
}

func (w *Wizard) validate(ctx context.Context, emp *models.Employee, p *models.OnboardingProgress, i int) (bool, []models.FieldError) {
	data, _ := p.Data[w.steps[i].Key].(map[string]any)
	return w.steps[i].Validate(ctx, emp, data)
}

// reopen makes step i current and drops it and later steps from the completed list.
func (w *Wizard) reopen(p *models.OnboardingProgress, i int) {
	p.CompletedSteps = slices.DeleteFunc(p.CompletedSteps, func(key string) bool {
		return w.index(key) >= i
	})
	p.CurrentStep = i
}

func (w *Wizard) start(ctx context.Context, emp *models.Employee) error {
	if emp.OnboardingStatus != models.OnboardingNotStarted {
		return nil
	}
	emp.OnboardingStatus = models.OnboardingInProgress
	return w.employees.Save(ctx, emp)
}
