package util

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

func RespondInternalServerError(logger *zap.Logger, writer http.ResponseWriter, request *http.Request, err error) {
	writer.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(writer, "Internal Server Error\n")
	logger.Error("internal error",
		zap.String("method", request.Method),
		zap.String("path", request.URL.Path),
		zap.Error(err),
	)
}

func RespondValidationError(writer http.ResponseWriter, message string) {
	writer.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(writer, "Validation Error: %s\n", message)
}

func RespondNotFound(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(writer, "404: Not Found\n")
}

func RespondForbidden(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusForbidden)
	fmt.Fprintf(writer, "403: Forbidden\n")
}
