package worker_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/features/document"
	"ragchat/internal/adapter/local"
	"ragchat/internal/config"
	"ragchat/internal/testutils"
	"ragchat/internal/text"
	"ragchat/internal/vector"
	"ragchat/internal/worker"
)

func TestTopicRouting_DocumentIngested(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	ctx := context.Background()
	appCfg := s.GetAppConfig()

	repo := document.NewPostgresRepo(s.DB)
	svc := document.NewService(repo, local.NewEmbedder(32), vector.NewGuarded(vector.NewMemoryIndex()), s.NSQ, document.Options{
		Collection: "routing",
		Recreate:   true,
	})

	events := make(chan worker.DocumentIngested, 1)
	consumer, err := nsq.NewConsumer(config.TopicDocumentIngested, "test-ch", nsq.NewConfig())
	require.NoError(t, err)
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		var ev worker.DocumentIngested
		if err := json.Unmarshal(m.Body, &ev); err != nil {
			return err
		}
		events <- ev
		return nil
	}))
	require.NoError(t, consumer.ConnectToNSQD(appCfg.NSQDHost))
	defer consumer.Stop()

	params := text.DefaultParams()
	params.ChunkSize = 10
	res, err := svc.Ingest(ctx, document.Upload{
		FileName: "routing.txt",
		Size:     25,
		Body:     strings.NewReader("abcdefghijklmnopqrstuvwxy"),
		Params:   params,
	})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, res.DocumentID, ev.DocumentID)
		assert.Equal(t, "routing.txt", ev.FileName)
		assert.Equal(t, 3, ev.TotalChunks)
		assert.Equal(t, "routing", ev.Collection)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for document.ingested event")
	}

	// The consumer writes what the service announced.
	h := worker.NewMetadataConsumer(repo)
	body, err := json.Marshal(worker.DocumentIngested{
		DocumentID: res.DocumentID, FileName: "routing.txt", TotalChunks: 3, Strategy: "fixed", Mode: "replace", UploadedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, h.HandleMessage(&nsq.Message{Body: body}))

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, res.DocumentID, docs[0].ID)
}
