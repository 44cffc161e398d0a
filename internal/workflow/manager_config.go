package workflow

// ConfigureStages registers the concrete stage handlers the workflow will run,
// in pipeline order. Nil handlers are skipped.
func (m *Manager) ConfigureStages(set StageSet) {
	candidates := []pipelineStage{
		{name: "acquisition", handler: set.Acquisition},
		{name: "transcription", handler: set.Transcription},
		{name: "postprocess", handler: set.Postprocess},
		{name: "export", handler: set.Export},
	}
	stages := make([]pipelineStage, 0, len(candidates))
	for _, stg := range candidates {
		if stg.handler != nil {
			stages = append(stages, stg)
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}
