package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/can-bridge/udp2can/pkg/api"
	"github.com/can-bridge/udp2can/pkg/intfmap"
	"github.com/can-bridge/udp2can/pkg/version"
	"github.com/gorilla/mux"
)

type Backend struct {
	Gateway Gateway
}

// Gateway is the read-only view of the mapping table served by the API.
type Gateway interface {
	Mappings() intfmap.Table
	Mapping(index int) (intfmap.Entry, bool)
	ByInterface(id string) []int
	Analysis() intfmap.Analysis
	Info() api.Info
}

func (b *Backend) onError(w http.ResponseWriter, r *http.Request, err error, ec int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ec)
	// it is safe to return the err to the client, because the client is reliable
	e := api.ErrorJSON{
		Message: err.Error(),
	}
	_ = json.NewEncoder(w).Encode(e)
}

func (b *Backend) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	m, err := json.Marshal(v)
	if err != nil {
		b.onError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(m)
}

func (b *Backend) Ping(w http.ResponseWriter, r *http.Request) {
	b.writeJSON(w, r, "pong")
}

func (b *Backend) GetInfo(w http.ResponseWriter, r *http.Request) {
	info := b.Gateway.Info()
	info.Version = version.Version
	b.writeJSON(w, r, info)
}

func (b *Backend) GetMappings(w http.ResponseWriter, r *http.Request) {
	res := []api.Mapping{}
	for i, e := range b.Gateway.Mappings() {
		res = append(res, api.FromEntry(i, e))
	}
	b.writeJSON(w, r, res)
}

func (b *Backend) GetMapping(w http.ResponseWriter, r *http.Request) {
	s, ok := mux.Vars(r)["index"]
	if !ok {
		b.onError(w, r, errors.New("index not specified"), http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(s)
	if err != nil {
		b.onError(w, r, fmt.Errorf("invalid index %q", s), http.StatusBadRequest)
		return
	}
	e, ok := b.Gateway.Mapping(index)
	if !ok {
		b.onError(w, r, fmt.Errorf("mapping %d not found", index), http.StatusNotFound)
		return
	}
	b.writeJSON(w, r, api.FromEntry(index, e))
}

func (b *Backend) GetInterfaceMappings(w http.ResponseWriter, r *http.Request) {
	id, ok := mux.Vars(r)["id"]
	if !ok {
		b.onError(w, r, errors.New("id not specified"), http.StatusBadRequest)
		return
	}
	idx := b.Gateway.ByInterface(id)
	if len(idx) == 0 {
		b.onError(w, r, fmt.Errorf("no mapping on CAN interface %q", id), http.StatusNotFound)
		return
	}
	res := []api.Mapping{}
	for _, i := range idx {
		if e, ok := b.Gateway.Mapping(i); ok {
			res = append(res, api.FromEntry(i, e))
		}
	}
	b.writeJSON(w, r, res)
}

func (b *Backend) GetGroups(w http.ResponseWriter, r *http.Request) {
	b.writeJSON(w, r, api.FromAnalysis(b.Gateway.Analysis()))
}

func AddRoutes(r *mux.Router, b *Backend) {
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Path("/ping").Methods("GET").HandlerFunc(b.Ping)
	v1.Path("/info").Methods("GET").HandlerFunc(b.GetInfo)
	v1.Path("/mappings").Methods("GET").HandlerFunc(b.GetMappings)
	v1.Path("/mappings/{index}").Methods("GET").HandlerFunc(b.GetMapping)
	v1.Path("/interfaces/{id}/mappings").Methods("GET").HandlerFunc(b.GetInterfaceMappings)
	v1.Path("/groups").Methods("GET").HandlerFunc(b.GetGroups)
}
