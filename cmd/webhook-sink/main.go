// Command webhook-sink is a local receiver for trying the monitor end to
// end: it accepts summary POSTs, pretty-prints them and saves each one under
// ./summaries.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okgrp/groupwatch/internal/logger"
)

const summariesDir = "summaries"

func main() {
	if err := logger.Init("info", ""); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	if err := os.MkdirAll(summariesDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create summaries directory")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			http.Error(w, `{"status":"error"}`, http.StatusBadRequest)
			return
		}

		pretty, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Printf("\n=== received summary ===\n%s\n", pretty)

		filename := fmt.Sprintf("%s/summary_%s.json", summariesDir, time.Now().Format("20060102_150405"))
		if err := os.WriteFile(filename, pretty, 0644); err != nil {
			log.Error().Err(err).Msg("failed to save summary")
			http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
			return
		}
		log.Info().Str("file", filename).Msg("summary saved")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "success",
			"saved_to": filename,
		})
	})

	addr := ":5000"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	log.Info().Str("addr", addr).Msg("webhook sink listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
