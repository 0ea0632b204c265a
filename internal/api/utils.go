package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"garment-lab/pkg/api"

	"github.com/gorilla/schema"
)

type codedError struct {
	err     error
	status  int
	code    string
	details string
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(status int, err error) error {
	return &codedError{err: err, status: status}
}

func CodedErrorf(status int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), status: status}
}

// DetailedError is a coded error that also reports a machine readable failure
// code and the underlying cause to the caller.
func DetailedError(status int, code, details string, err error) error {
	return &codedError{err: err, status: status, code: code, details: details}
}

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return data, nil
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	err := queryDecoder.Decode(&data, r.Form)
	if err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params: %v", err)
	}

	return data, nil
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			writeError(w, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, res)
	}
}

type StreamResponse func(yield func(any, error) bool)

type StreamMessage struct {
	Data  interface{}
	Error string
	Code  int
}

// RestStreamHandler writes each item of the stream as one JSON line and
// flushes after every line. Errors returned before streaming starts are
// written like RestHandler errors.
func RestStreamHandler(handler func(r *http.Request) (StreamResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream, err := handler(r)
		if err != nil {
			writeError(w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			slog.Error("response writer does not support flushing")
			writeError(w, CodedErrorf(http.StatusInternalServerError, "streaming not supported"))
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)

		for data, err := range stream {
			var msg StreamMessage
			if err != nil {
				status, _ := errorStatus(err)
				msg = StreamMessage{Error: err.Error(), Code: status}
			} else {
				msg = StreamMessage{Data: data, Code: http.StatusOK}
			}

			if writeErr := json.NewEncoder(w).Encode(msg); writeErr != nil {
				slog.Error("error writing json response", "error", writeErr)
				return
			}

			flusher.Flush()
		}
	}
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	writeJson(w, http.StatusOK, data)
}

func writeJson(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}

func errorStatus(err error) (int, *codedError) {
	var cerr *codedError
	if errors.As(err, &cerr) {
		if cerr.status == http.StatusInternalServerError {
			slog.Error("internal server error received in endpoint", "error", err, "details", cerr.details)
		}
		return cerr.status, cerr
	}
	slog.Error("recieved non coded error from endpoint", "error", err)
	return http.StatusInternalServerError, nil
}

func writeError(w http.ResponseWriter, err error) {
	status, cerr := errorStatus(err)
	body := api.ErrorResponse{Error: err.Error()}
	if cerr != nil {
		body.Code = cerr.code
		body.Details = cerr.details
	}
	writeJson(w, status, body)
}
