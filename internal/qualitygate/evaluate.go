package qualitygate

import "quality-backend/internal/measures"

// Evaluate checks every condition of gate against metrics (scope ALL) or
// metricsNew (scope NEW). The gate fails if any condition fails. A metric
// absent from the selected map cannot be evaluated and passes.
func Evaluate(gate Gate, metrics, metricsNew measures.Metrics) Result {
	res := Result{
		Status:     StatusPass,
		Conditions: make([]ConditionResult, 0, len(gate.Conditions)),
	}
	for _, cond := range gate.Conditions {
		cr := evaluateCondition(cond, metrics, metricsNew)
		if !cr.Passed {
			res.Status = StatusFail
		}
		res.Conditions = append(res.Conditions, cr)
	}
	return res
}

func evaluateCondition(cond Condition, metrics, metricsNew measures.Metrics) ConditionResult {
	cr := ConditionResult{
		Metric:    cond.Metric,
		Operator:  cond.Operator,
		Threshold: cond.Threshold,
		Scope:     cond.Scope,
		Passed:    true,
	}
	source := metrics
	if cond.Scope == ScopeNew {
		source = metricsNew
	}
	value, ok := source.Get(cond.Metric)
	if !ok {
		return cr
	}
	cr.Value = &value
	cr.Evaluated = true
	cr.Passed = !fails(cond.Operator, value, cond.Threshold)
	return cr
}

func fails(op Operator, value, threshold float64) bool {
	switch op {
	case OperatorGT:
		return value > threshold
	case OperatorLT:
		return value < threshold
	case OperatorEQ:
		return value == threshold
	}
	return false
}
