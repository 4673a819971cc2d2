package reconcile

import "tasksync/backend"

// PrepareTasks validates references and orders tasks so every parent comes
// before its children.
//
// project_id values outside validProjectIDs are cleared, and parent_id values
// that do not name a task in the same batch are cleared. Parent cycles are
// broken by clearing parent_id on the tasks left unresolved, which are then
// appended as roots. The output always holds exactly the input tasks; the
// input slice is not modified.
func PrepareTasks(tasks []backend.Task, validProjectIDs map[string]struct{}) []backend.Task {
	batchIDs := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		batchIDs[t.ID] = struct{}{}
	}

	var roots, parented []backend.Task
	for _, t := range tasks {
		task := t.Clone()

		if task.ProjectID != nil {
			if _, ok := validProjectIDs[*task.ProjectID]; !ok {
				task.ProjectID = nil
			}
		}
		if task.ParentID != nil {
			if _, ok := batchIDs[*task.ParentID]; !ok {
				task.ParentID = nil
			}
		}

		if task.ParentID == nil {
			roots = append(roots, task)
		} else {
			parented = append(parented, task)
		}
	}

	result := make([]backend.Task, 0, len(tasks))
	result = append(result, roots...)

	inserted := make(map[string]struct{}, len(tasks))
	for _, t := range roots {
		inserted[t.ID] = struct{}{}
	}

	// Each pass places at least one task or stops, so len(parented)+1 passes
	// are always enough.
	remaining := parented
	for pass := 0; len(remaining) > 0 && pass <= len(parented); pass++ {
		var stillRemaining []backend.Task
		for _, t := range remaining {
			if _, ok := inserted[*t.ParentID]; ok {
				inserted[t.ID] = struct{}{}
				result = append(result, t)
			} else {
				stillRemaining = append(stillRemaining, t)
			}
		}
		if len(stillRemaining) == len(remaining) {
			break
		}
		remaining = stillRemaining
	}

	// Whatever is left sits on a parent cycle
	for _, t := range remaining {
		t.ParentID = nil
		result = append(result, t)
	}

	return result
}

// projectIDSet collects project ids into a set
func projectIDSet(projects []backend.Project) map[string]struct{} {
	ids := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		ids[p.ID] = struct{}{}
	}
	return ids
}
