package workflow

// Status aggregates step outcomes against the declared step set.
type Status struct {
	Total          int     `json:"total"`
	Executed       int     `json:"executed"`
	Successful     int     `json:"successful"`
	Failed         int     `json:"failed"`
	Pending        int     `json:"pending"`
	SuccessRate    float64 `json:"success_rate"`
	OverallSuccess bool    `json:"overall_success"`
}

// Status computes the current aggregate. A step that was never attempted keeps the
// workflow from succeeding overall.
func (s *Store) Status() Status {
	var st Status
	s.read(func(results map[string]WorkflowResult, _ map[string]any) {
		st = aggregate(s.graph.ids(allNodes(s.graph.Len())), results)
	})
	return st
}

// StatusOf aggregates over the given steps only, typically a scoped execution order.
// Unknown IDs count as pending.
func (s *Store) StatusOf(ids []string) Status {
	var st Status
	s.read(func(results map[string]WorkflowResult, _ map[string]any) {
		st = aggregate(ids, results)
	})
	return st
}

func aggregate(ids []string, results map[string]WorkflowResult) Status {
	st := Status{Total: len(ids)}
	for _, id := range ids {
		r, ok := results[id]
		if !ok {
			continue
		}
		st.Executed++
		if r.Success {
			st.Successful++
		}
	}

	st.Failed = st.Executed - st.Successful
	st.Pending = st.Total - st.Executed
	if st.Executed > 0 {
		st.SuccessRate = float64(st.Successful) / float64(st.Executed)
	}
	st.OverallSuccess = st.Successful == st.Total
	return st
}
