package http

import "net/http"

// DataResponse is the success envelope for single resources
type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// PageResponse is the success envelope for paginated collections
type PageResponse struct {
	Success    bool `json:"success"`
	Data       any  `json:"data"`
	Pagination any  `json:"pagination"`
}

// MessageResponse carries a human message and no data
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func WriteData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, DataResponse{Success: true, Data: data})
}

func WritePage(w http.ResponseWriter, data, pagination any) {
	writeJSON(w, http.StatusOK, PageResponse{Success: true, Data: data, Pagination: pagination})
}

func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, MessageResponse{Success: true, Message: message})
}
