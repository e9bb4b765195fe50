package handlers

import (
	"net/http"
	"strconv"
)

const historyPageSize = 20

// History handles GET /history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	// Fetch one extra row to know whether a next page exists
	records, err := h.monitor.History(historyPageSize+1, (page-1)*historyPageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := HistoryData{
		Title:     "History",
		ActiveNav: "history",
		Page:      page,
		PrevPage:  page - 1,
		NextPage:  page + 1,
	}
	if len(records) > historyPageSize {
		data.HasMore = true
		records = records[:historyPageSize]
	}
	for _, rec := range records {
		data.Records = append(data.Records, toHistoryView(rec))
	}

	h.render(w, "history.html", data)
}
