package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"hackmate/pkg/response"
	"hackmate/pkg/wire"
)

func newAPIServer(t *testing.T, register func(r *gin.Engine)) *HTTPClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", nil, 50)
}

func TestHTTPClient_DirectHistory(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	client := newAPIServer(t, func(r *gin.Engine) {
		r.GET("/messages", func(c *gin.Context) {
			require.Equal(t, "u-1", c.Query("user_id"))
			require.Equal(t, "u-2", c.Query("peer_id"))
			require.Equal(t, "50", c.Query("limit"))
			response.SendAPIResponse(c, http.StatusOK, true, "Messages retrieved successfully", gin.H{
				"messages": []wire.Message{
					{ID: "m1", SenderID: "u-2", ReceiverID: "u-1", Message: "hey", CreatedAt: created},
					{ID: "m2", SenderID: "u-1", ReceiverID: "u-2", Message: "hi", CreatedAt: created, MessageID: "tmp-abc"},
				},
				"count": 2,
			})
		})
	})

	msgs, err := client.History(context.Background(), "u-1", Direct("u-2"))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hey", msgs[0].Body)
	require.Equal(t, StateConfirmed, msgs[0].State)
	require.Equal(t, "tmp-abc", msgs[1].CorrelationID)
	require.True(t, msgs[0].CreatedAt.Equal(created))
}

func TestHTTPClient_TeamHistory(t *testing.T) {
	client := newAPIServer(t, func(r *gin.Engine) {
		r.GET("/teams/:teamId/messages", func(c *gin.Context) {
			require.Equal(t, "t-1", c.Param("teamId"))
			require.Empty(t, c.Query("peer_id"))
			response.SendAPIResponse(c, http.StatusOK, true, "ok", gin.H{
				"messages": []wire.Message{{ID: "m1", SenderID: "u-3", ReceiverID: "t-1", TeamID: "t-1", Message: "standup"}},
				"count":    1,
			})
		})
	})

	msgs, err := client.History(context.Background(), "u-1", Team("t-1"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "t-1", msgs[0].TeamID)
}

func TestHTTPClient_ErrorEnvelope(t *testing.T) {
	client := newAPIServer(t, func(r *gin.Engine) {
		r.GET("/messages", func(c *gin.Context) {
			response.SendError(c, http.StatusBadRequest, "peer_id must be a valid UUID")
		})
		r.POST("/messages/:messageId/report", func(c *gin.Context) {
			response.SendError(c, http.StatusConflict, "message already reported")
		})
	})

	_, err := client.History(context.Background(), "u-1", Direct("bad"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "peer_id must be a valid UUID", apiErr.Message)

	err = client.Report(context.Background(), Report{MessageID: "m1", ReporterID: "u-1", Reason: "spam"})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestHTTPClient_MarkReadBodies(t *testing.T) {
	bodies := make(chan map[string]string, 2)
	client := newAPIServer(t, func(r *gin.Engine) {
		handler := func(c *gin.Context) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(c.Request.Body).Decode(&body))
			bodies <- body
			response.SendAPIResponse(c, http.StatusOK, true, "marked as read", nil)
		}
		r.PUT("/messages/read", handler)
		r.PUT("/teams/:teamId/messages/read", handler)
	})

	require.NoError(t, client.MarkRead(context.Background(), "u-1", Direct("u-2")))
	require.Equal(t, map[string]string{"senderId": "u-2", "receiverId": "u-1"}, <-bodies)

	require.NoError(t, client.MarkRead(context.Background(), "u-1", Team("t-1")))
	require.Equal(t, map[string]string{"userId": "u-1"}, <-bodies)
}

func TestHTTPClient_Report(t *testing.T) {
	var got map[string]string
	client := newAPIServer(t, func(r *gin.Engine) {
		r.POST("/messages/:messageId/report", func(c *gin.Context) {
			require.Equal(t, "m-7", c.Param("messageId"))
			require.NoError(t, c.ShouldBindJSON(&got))
			response.SendAPIResponse(c, http.StatusCreated, true, "report filed", gin.H{"id": "r-1"})
		})
	})

	require.NoError(t, client.Report(context.Background(), Report{MessageID: "m-7", ReporterID: "u-1", Reason: "harassment", Details: "insults"}))
	require.Equal(t, map[string]string{"reporterId": "u-1", "reason": "harassment", "details": "insults"}, got)
}
