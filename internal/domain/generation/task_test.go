package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/imagegen/internal/model"
)

func TestNewTask(t *testing.T) {
	req := model.NewGenerationRequest([]string{"a red", "fox", "in snow"}, map[string]any{"steps": 20})
	req.AppendOutputToFile = true

	task := newTask(req)

	assert.NotEmpty(t, task.ID())
	assert.Equal(t, model.TaskStateSubmitted, task.State())
	assert.Equal(t, StatusMessageSubmitted, task.StatusMessage())
	assert.Equal(t, "a red fox in snow", task.Prompt())
	assert.Equal(t, 20, task.Options().Steps)
	assert.Equal(t, "true", task.Metadata()[MetadataAppendOutputToFile])
	assert.False(t, task.WantsPublicOutput())
	assert.False(t, task.IsTerminal())
}

func TestTask_Transitions(t *testing.T) {
	t.Run("succeed", func(t *testing.T) {
		task := newTask(nil)
		task.start()
		assert.Equal(t, model.TaskStateRunning, task.State())
		assert.Equal(t, StatusMessageRunning, task.StatusMessage())

		task.succeed(&model.Artifact{Data: []byte("x"), MimeType: "image/png"})
		assert.True(t, task.IsTerminal())
		assert.Equal(t, StatusMessageSucceeded, task.StatusMessage())
		assert.Nil(t, task.Err())
	})

	t.Run("fail", func(t *testing.T) {
		task := newTask(nil)
		task.start()
		task.fail(NewConfigurationError("api_key is required"))

		assert.Equal(t, model.TaskStateFailed, task.State())
		assert.Nil(t, task.Artifact())
		assert.Contains(t, task.StatusMessage(), "api_key is required")
	})
}

func TestTask_Observe(t *testing.T) {
	task := newTask(nil)

	t.Run("ignores foreign records", func(t *testing.T) {
		assert.False(t, task.observe(&model.GenerationTaskRecord{ID: "other", State: model.TaskStateRunning}))
		assert.False(t, task.observe(nil))
	})

	t.Run("applies forward transitions", func(t *testing.T) {
		rec := task.Record()
		rec.State = model.TaskStateRunning
		assert.True(t, task.observe(rec))
		assert.Equal(t, model.TaskStateRunning, task.State())
	})

	t.Run("ignores stale records", func(t *testing.T) {
		rec := task.Record()
		rec.State = model.TaskStateSubmitted
		assert.False(t, task.observe(rec))
		assert.Equal(t, model.TaskStateRunning, task.State())
	})

	t.Run("terminal task is frozen", func(t *testing.T) {
		rec := task.Record()
		rec.State = model.TaskStateFailed
		rec.Error = &model.TaskError{Kind: "provider", Message: "rejected", StatusCode: 500}
		rec.Metadata[MetadataPublicURL] = "https://example.com/x.png"
		require.True(t, task.observe(rec))
		assert.Equal(t, KindProvider, task.Err().Kind)
		assert.Equal(t, "https://example.com/x.png", task.Metadata()[MetadataPublicURL])

		rec.State = model.TaskStateSucceeded
		assert.False(t, task.observe(rec))
		assert.Equal(t, model.TaskStateFailed, task.State())
	})
}

func TestReconstructTask(t *testing.T) {
	orig := newTask(model.NewGenerationRequest([]string{"cat"}, nil))
	orig.start()
	orig.succeed(&model.Artifact{Data: []byte{1, 2, 3}, MimeType: "image/png"})

	rebuilt := ReconstructTask(orig.Record())

	assert.Equal(t, orig.ID(), rebuilt.ID())
	assert.Equal(t, orig.State(), rebuilt.State())
	assert.Equal(t, orig.Artifact(), rebuilt.Artifact())
	assert.Equal(t, orig.Prompt(), rebuilt.Prompt())
	assert.Equal(t, orig.Metadata(), rebuilt.Metadata())
}

func TestGenerationRequest_Prompt(t *testing.T) {
	assert.Equal(t, "", model.NewGenerationRequest(nil, nil).Prompt())
	assert.Equal(t, "beautiful woman", model.NewGenerationRequest([]string{"beautiful", "woman"}, nil).Prompt())

	var nilReq *model.GenerationRequest
	assert.Equal(t, "", nilReq.Prompt())
}
