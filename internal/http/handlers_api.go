package http

import (
	"net/http"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	params := ParseListParams(r.URL.Query())
	items, err := s.analytics.ListTransactions(r.Context(), params)
	writeResult(s, w, r, nonNil(items), err)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.analytics.Statistics(r.Context(), ParseMonthParam(r.URL.Query()))
	writeResult(s, w, r, stats, err)
}

func (s *Server) handleBarChart(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.analytics.BarChart(r.Context(), ParseMonthParam(r.URL.Query()))
	writeResult(s, w, r, nonNil(buckets), err)
}

func (s *Server) handlePieChart(w http.ResponseWriter, r *http.Request) {
	categories, err := s.analytics.PieChart(r.Context(), ParseMonthParam(r.URL.Query()))
	writeResult(s, w, r, nonNil(categories), err)
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	data, err := s.analytics.Combined(r.Context(), ParseMonthParam(r.URL.Query()))
	data.Transactions = nonNil(data.Transactions)
	data.BarChartData = nonNil(data.BarChartData)
	data.PieChartData = nonNil(data.PieChartData)
	writeResult(s, w, r, data, err)
}
