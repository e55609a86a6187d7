package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rorbcloud/calibration-backend/internal/hydrology"
	"github.com/rorbcloud/calibration-backend/internal/requestdata"
	"github.com/rorbcloud/calibration-backend/internal/services"
	"github.com/rorbcloud/calibration-backend/internal/types"
)

type CalibrationHandler struct {
	calibration services.CalibrationService
}

func NewCalibrationHandler(calibration services.CalibrationService) *CalibrationHandler {
	return &CalibrationHandler{calibration: calibration}
}

// POST /api/calibrate
// Multipart: "catg" catchment file, "storms" storm files, plus form fields
// kcMin/kcMax/kcStep/m/initialLoss/continuousLoss.
func (h *CalibrationHandler) SubmitSweep(c *gin.Context) {
	ownerID := requestdata.OwnerID(c.Request.Context())

	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_multipart", err)
		return
	}

	req := services.SubmitSweepRequest{}
	if req.KcMin, err = formFloat(c, "kcMin"); err != nil {
		RespondKindError(c, err)
		return
	}
	if req.KcMax, err = formFloat(c, "kcMax"); err != nil {
		RespondKindError(c, err)
		return
	}
	if req.KcStep, err = formFloat(c, "kcStep"); err != nil {
		RespondKindError(c, err)
		return
	}
	if req.M, err = formFloat(c, "m"); err != nil {
		RespondKindError(c, err)
		return
	}
	if req.InitialLoss, err = formFloat(c, "initialLoss"); err != nil {
		RespondKindError(c, err)
		return
	}
	if req.ContinuousLoss, err = formFloat(c, "continuousLoss"); err != nil {
		RespondKindError(c, err)
		return
	}

	catgFiles := form.File["catg"]
	if len(catgFiles) > 0 {
		req.CatchmentData, err = readUpload(catgFiles[0])
		if err != nil {
			RespondError(c, http.StatusBadRequest, "unreadable_catchment_file", err)
			return
		}
	}
	for _, fh := range form.File["storms"] {
		data, err := readUpload(fh)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "unreadable_storm_file", err)
			return
		}
		req.Storms = append(req.Storms, hydrology.StormEvent{Name: fh.Filename, Data: data})
	}

	taskID, err := h.calibration.SubmitSweep(c.Request.Context(), ownerID, req)
	if err != nil {
		RespondKindError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"message": "Calibration started",
		"task_id": taskID,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func formFloat(c *gin.Context, field string) (float64, error) {
	raw := c.PostForm(field)
	if raw == "" {
		return 0, types.NewValidationError("missing form field %s", field)
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewValidationError("form field %s is not a number: %q", field, raw)
	}
	return val, nil
}

func readUpload(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
