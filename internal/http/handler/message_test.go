package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"iris.app/engage/internal/http/handler"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/queue"
)

var _ = Describe("MessageHandler", func() {
	var (
		router    *gin.Engine
		producer  *mockProducer
		processor *mockProcessor
	)

	post := func(path, body string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	validBody := `{"conversation_id":"c1","user_id":"u1","text":"hello","platform":"line"}`

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		producer = &mockProducer{}
		processor = &mockProcessor{}
		h := handler.NewMessageHandler(producer, processor, "X-Trace-Id")
		router.POST("/messages", h.Submit)
		router.POST("/decide", h.Decide)
	})

	Describe("Submit", func() {
		It("enqueues the message and returns 202", func() {
			w := post("/messages", validBody, map[string]string{"X-Trace-Id": "trace-1"})

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(producer.enqueued).To(HaveLen(1))
			msg := producer.enqueued[0]
			Expect(msg.ConversationID).To(Equal("c1"))
			Expect(msg.Platform).To(Equal(model.PlatformLine))
			Expect(msg.TraceID).To(Equal("trace-1"))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["enqueued"]).To(BeTrue())
		})

		It("returns 400 when required fields are missing", func() {
			w := post("/messages", `{"conversation_id":"c1"}`, nil)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("returns 500 when the queue is unavailable", func() {
			producer.enqueueFn = func(context.Context, queue.InboundMessage) error {
				return errors.New("redis down")
			}

			w := post("/messages", validBody, nil)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("Decide", func() {
		It("runs the pipeline inline and returns the decision", func() {
			processor.processFn = func(_ context.Context, in orchestrator.Inbound) *orchestrator.Result {
				return &orchestrator.Result{
					Decision: &model.DecisionRecord{
						ConversationID:  in.ConversationID,
						UserID:          in.UserID,
						DecisionType:    model.TypeClarificationNeeded,
						ConfidenceLevel: model.ConfidenceLow,
						Intent:          "order_status",
						QualityScore:    0.7,
					},
					Action: model.Action{Text: "which order?", Strategy: "clarifying_question", Generated: true},
				}
			}

			w := post("/decide", validBody, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["decision_type"]).To(Equal("clarification_needed"))
			Expect(resp["intent"]).To(Equal("order_status"))

			action, ok := resp["action"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(action["text"]).To(Equal("which order?"))
		})

		It("returns 400 on malformed JSON", func() {
			w := post("/decide", `{`, nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
