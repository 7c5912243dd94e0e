package policy

import "github.com/stitchworks/api/internal/model"

// PipelinePolicy answers which task types may follow a completed type for a
// given production method, and designates the quality-control and terminal
// types driving the order status projection.
type PipelinePolicy interface {
	NextEligibleTaskTypes(completed model.TaskType, method model.Method) []model.TaskType
	IsStartable(t model.TaskType, completed map[model.TaskType]bool, method model.Method) bool
	TaskTypes(method model.Method) []model.TaskType
	QCTaskType(method model.Method) model.TaskType
	TerminalTaskType(method model.Method) model.TaskType
}

// pipelineSpec is a prerequisite DAG over task types plus the designated
// quality-control and terminal (finishing) types.
type pipelineSpec struct {
	order    []model.TaskType
	prereqs  map[model.TaskType][]model.TaskType
	qc       model.TaskType
	terminal model.TaskType
}

var pipelines = map[model.Method]pipelineSpec{
	model.MethodSilkscreen: {
		order: []model.TaskType{
			model.TaskTypeCutting, model.TaskTypePrinting, model.TaskTypeSewing,
			model.TaskTypeQualityControl, model.TaskTypeFinishing,
		},
		prereqs: map[model.TaskType][]model.TaskType{
			model.TaskTypePrinting:       {model.TaskTypeCutting},
			model.TaskTypeSewing:         {model.TaskTypePrinting},
			model.TaskTypeQualityControl: {model.TaskTypeSewing},
			model.TaskTypeFinishing:      {model.TaskTypeQualityControl},
		},
		qc:       model.TaskTypeQualityControl,
		terminal: model.TaskTypeFinishing,
	},
	model.MethodEmbroidery: {
		order: []model.TaskType{
			model.TaskTypeCutting, model.TaskTypeEmbroidery, model.TaskTypeSewing,
			model.TaskTypeQualityControl, model.TaskTypeFinishing,
		},
		prereqs: map[model.TaskType][]model.TaskType{
			model.TaskTypeEmbroidery:     {model.TaskTypeCutting},
			model.TaskTypeSewing:         {model.TaskTypeEmbroidery},
			model.TaskTypeQualityControl: {model.TaskTypeSewing},
			model.TaskTypeFinishing:      {model.TaskTypeQualityControl},
		},
		qc:       model.TaskTypeQualityControl,
		terminal: model.TaskTypeFinishing,
	},
	// DTF transfers are printed while fabric is cut, so sewing waits on both.
	model.MethodDTF: {
		order: []model.TaskType{
			model.TaskTypeCutting, model.TaskTypePrinting, model.TaskTypeSewing,
			model.TaskTypeQualityControl, model.TaskTypeFinishing,
		},
		prereqs: map[model.TaskType][]model.TaskType{
			model.TaskTypeSewing:         {model.TaskTypeCutting, model.TaskTypePrinting},
			model.TaskTypeQualityControl: {model.TaskTypeSewing},
			model.TaskTypeFinishing:      {model.TaskTypeQualityControl},
		},
		qc:       model.TaskTypeQualityControl,
		terminal: model.TaskTypeFinishing,
	},
	// Sublimation prints before cutting: the design is dyed into whole panels.
	model.MethodSublimation: {
		order: []model.TaskType{
			model.TaskTypePrinting, model.TaskTypeCutting, model.TaskTypeSewing,
			model.TaskTypeQualityControl, model.TaskTypeFinishing,
		},
		prereqs: map[model.TaskType][]model.TaskType{
			model.TaskTypeCutting:        {model.TaskTypePrinting},
			model.TaskTypeSewing:         {model.TaskTypeCutting},
			model.TaskTypeQualityControl: {model.TaskTypeSewing},
			model.TaskTypeFinishing:      {model.TaskTypeQualityControl},
		},
		qc:       model.TaskTypeQualityControl,
		terminal: model.TaskTypeFinishing,
	},
}

// MethodPipeline is the built-in PipelinePolicy over the method table above.
type MethodPipeline struct{}

func NewMethodPipeline() *MethodPipeline { return &MethodPipeline{} }

// NextEligibleTaskTypes returns the task types that list the just-completed
// type among their prerequisites for the method.
func (p *MethodPipeline) NextEligibleTaskTypes(completed model.TaskType, method model.Method) []model.TaskType {
	spec, ok := pipelines[method]
	if !ok {
		return nil
	}
	var next []model.TaskType
	for _, t := range spec.order {
		for _, pre := range spec.prereqs[t] {
			if pre == completed {
				next = append(next, t)
				break
			}
		}
	}
	return next
}

// IsStartable reports whether every prerequisite of t is in the completed set.
func (p *MethodPipeline) IsStartable(t model.TaskType, completed map[model.TaskType]bool, method model.Method) bool {
	spec, ok := pipelines[method]
	if !ok {
		return false
	}
	for _, pre := range spec.prereqs[t] {
		if !completed[pre] {
			return false
		}
	}
	return true
}

// TaskTypes returns the method's task types in pipeline order.
func (p *MethodPipeline) TaskTypes(method model.Method) []model.TaskType {
	return pipelines[method].order
}

func (p *MethodPipeline) QCTaskType(method model.Method) model.TaskType {
	return pipelines[method].qc
}

func (p *MethodPipeline) TerminalTaskType(method model.Method) model.TaskType {
	return pipelines[method].terminal
}
