package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"minerlink/pkg/model"
)

func newTestClient(c *qt.C, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	c.Cleanup(srv.Close)
	cl, err := New(Config{BaseURL: srv.URL + "/api/v1/", Token: "t0k", Timeout: time.Second})
	c.Assert(err, qt.IsNil)
	return cl
}

func TestRegister(t *testing.T) {
	c := qt.New(t)
	var got model.RegistrationRequest
	cl := newTestClient(c, func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodPost)
		c.Check(r.URL.Path, qt.Equals, "/api/v1/miners/")
		c.Check(r.Header.Get("Authorization"), qt.Equals, "Bearer t0k")
		c.Check(json.NewDecoder(r.Body).Decode(&got), qt.IsNil)
		json.NewEncoder(w).Encode(model.RegistrationResponse{MinerID: "m-1", Message: "ok"})
	})

	resp, err := cl.Register(context.Background(), model.RegistrationRequest{
		Name:     "alice",
		Location: "Berlin, BE, DE",
		ComputeResources: []model.ComputeResource{{
			ID: "r1", ResourceType: "CPU", RAM: "16.00GB",
			Network: model.NetworkInfo{SSH: "ssh://alice@h:1", OpenPorts: []string{"22"}},
		}},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(resp.MinerID, qt.Equals, "m-1")
	c.Assert(got.Name, qt.Equals, "alice")
	c.Assert(got.ComputeResources[0].Network.SSH, qt.Equals, "ssh://alice@h:1")
}

func TestRegisterRejectsMissingID(t *testing.T) {
	c := qt.New(t)
	cl := newTestClient(c, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"queued"}`))
	})
	_, err := cl.Register(context.Background(), model.RegistrationRequest{})
	c.Assert(err, qt.ErrorMatches, "registry returned no miner_id")
}

func TestUpdateNetworkAndGetMiner(t *testing.T) {
	c := qt.New(t)
	var stored model.NetworkInfo
	cl := newTestClient(c, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/miners/m-1/network":
			var body struct {
				Network model.NetworkInfo `json:"network"`
			}
			c.Check(json.NewDecoder(r.Body).Decode(&body), qt.IsNil)
			stored = body.Network
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/miners/m-1":
			json.NewEncoder(w).Encode(model.MinerDetails{
				MinerID:          "m-1",
				ComputeResources: []model.ComputeResource{{Network: stored}},
			})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	net := model.NetworkInfo{SSH: "ssh://u@h:2", Username: "u", Password: "p", OpenPorts: []string{"22"}}

	c.Assert(cl.UpdateNetwork(ctx, "m-1", net), qt.IsNil)
	m, err := cl.GetMiner(ctx, "m-1")
	c.Assert(err, qt.IsNil)
	c.Assert(m.CurrentNetwork(), qt.DeepEquals, &net)
}

func TestErrorStatusIncludesBody(t *testing.T) {
	c := qt.New(t)
	cl := newTestClient(c, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad payload"}`, http.StatusUnprocessableEntity)
	})
	err := cl.SendHeartbeat(context.Background(), model.HeartbeatRequest{Status: "online"})
	c.Assert(err, qt.ErrorMatches, `sending heartbeat: registry returned 422 Unprocessable Entity body={"detail":"bad payload"}`)
}

func TestClientTimeout(t *testing.T) {
	c := qt.New(t)
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)
	cl, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	c.Assert(err, qt.IsNil)
	_, err = cl.GetMiner(context.Background(), "m")
	c.Assert(err, qt.IsNotNil)
}

func TestRecordRoundTrip(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "user_info.json")

	rec, err := LoadRecord(path)
	c.Assert(err, qt.IsNil)
	c.Assert(rec, qt.IsNil)

	c.Assert(SaveRecord(path, model.RegistrationRecord{MinerID: "m-9", Username: "bob"}), qt.IsNil)
	rec, err = LoadRecord(path)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.MinerID, qt.Equals, "m-9")
	c.Assert(rec.Username, qt.Equals, "bob")
}
