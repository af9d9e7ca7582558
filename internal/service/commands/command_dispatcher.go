package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/applications"
	"github.com/mamadbah2/orchard/internal/service/dosage"
	"github.com/mamadbah2/orchard/internal/service/lifecycle"
	"github.com/mamadbah2/orchard/internal/service/movements"
	"github.com/mamadbah2/orchard/internal/service/reporting"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

const containersOption = "canecas="

// Applications is the part of the application service reachable from WhatsApp.
type Applications interface {
	Get(ctx context.Context, id string) (models.Application, error)
	List(ctx context.Context, estado models.Estado) ([]models.Application, error)
	RecordMovement(ctx context.Context, id string, in applications.MovementInput) (models.DailyMovement, movements.Progress, error)
	Progress(ctx context.Context, id, lotID string) (movements.Progress, error)
	Report(ctx context.Context, id string) (reporting.ClosureReport, error)
}

// Dispatcher executes parsed commands against the application service.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
	RecordMovement(ctx context.Context, applicationID string, in applications.MovementInput) (string, error)
	ActiveApplications(ctx context.Context) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	apps   Applications
	logger *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(apps Applications, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{apps: apps, logger: logger}
}

const helpReply = "Comandos disponibles\n" +
	"/mov <aplicación> <lote> <producto> <cantidad> [canecas=N] [nota]\n" +
	"/avance <aplicación> [lote]\n" +
	"/cierre <aplicación>"

// HandleCommand runs one command and returns the reply text. Problems the worker can fix
// (bad arguments, unknown ids, operations not allowed in the current state) are returned
// as replies, not errors.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	var (
		reply string
		err   error
	)
	switch cmd.Type {
	case models.CommandMovement:
		reply, err = s.handleMovement(ctx, cmd, sender)
	case models.CommandProgress:
		reply, err = s.handleProgress(ctx, cmd)
	case models.CommandClosure:
		reply, err = s.handleClosure(ctx, cmd)
	case models.CommandHelp:
		return helpReply, nil
	default:
		return "Comando desconocido.\n" + helpReply, nil
	}

	if msg, ok := userMessage(err); ok {
		return msg, nil
	}
	return reply, err
}

// RecordMovement records a movement collected outside the slash syntax and returns the
// confirmation text.
func (s *Service) RecordMovement(ctx context.Context, applicationID string, in applications.MovementInput) (string, error) {
	app, err := s.apps.Get(ctx, applicationID)
	if msg, ok := userMessage(err); ok {
		return msg, nil
	}
	if err != nil {
		return "", err
	}

	mv, progress, err := s.apps.RecordMovement(ctx, app.ID, in)
	if msg, ok := userMessage(err); ok {
		return msg, nil
	}
	if err != nil {
		return "", err
	}

	return confirmation(app.Name, mv, progress), nil
}

// ActiveApplications describes the applications in execution, with their lots and
// products, one per line.
func (s *Service) ActiveApplications(ctx context.Context) (string, error) {
	apps, err := s.apps.List(ctx, models.EstadoEnEjecucion)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, app := range apps {
		lots := make([]string, 0, len(app.Lots))
		for _, lot := range app.Lots {
			lots = append(lots, fmt.Sprintf("%s (%s)", lot.LotID, lot.Name))
		}
		var products []string
		for _, req := range dosage.RequiredTotals(app.Mixtures) {
			products = append(products, fmt.Sprintf("%s (%s, %s)", req.ProductID, req.ProductName, req.Unit))
		}
		fmt.Fprintf(&b, "- %s \"%s\": lotes %s; productos %s\n", app.ID, app.Name, strings.Join(lots, ", "), strings.Join(products, ", "))
	}
	return b.String(), nil
}

func (s *Service) handleMovement(ctx context.Context, cmd models.Command, sender string) (string, error) {
	appID, in, err := parseMovement(cmd.Args)
	if err != nil {
		return "", err
	}
	in.Responsible = sender
	return s.RecordMovement(ctx, appID, in)
}

func (s *Service) handleProgress(ctx context.Context, cmd models.Command) (string, error) {
	if len(cmd.Args) == 0 {
		return "", ErrInvalidArguments
	}
	app, err := s.apps.Get(ctx, cmd.Args[0])
	if err != nil {
		return "", err
	}
	lotID := ""
	if len(cmd.Args) > 1 {
		lotID = cmd.Args[1]
	}

	progress, err := s.apps.Progress(ctx, app.ID, lotID)
	if err != nil {
		return "", err
	}
	name := app.Name
	if lotID != "" {
		name += " / " + lotID
	}
	return reporting.FormatProgress(name, progress), nil
}

func (s *Service) handleClosure(ctx context.Context, cmd models.Command) (string, error) {
	if len(cmd.Args) == 0 {
		return "", ErrInvalidArguments
	}
	report, err := s.apps.Report(ctx, cmd.Args[0])
	if err != nil {
		return "", err
	}
	return reporting.FormatClosureSummary(report), nil
}

// parseMovement reads "<app> <lot> <product> <qty> [canecas=N] [nota…]".
func parseMovement(args []string) (string, applications.MovementInput, error) {
	if len(args) < 4 {
		return "", applications.MovementInput{}, ErrInvalidArguments
	}

	qty, err := parseNumber(args[3])
	if err != nil {
		return "", applications.MovementInput{}, ErrInvalidArguments
	}

	in := applications.MovementInput{LotID: args[1], ProductID: args[2], Quantity: qty}
	rest := args[4:]
	if len(rest) > 0 && strings.HasPrefix(strings.ToLower(rest[0]), containersOption) {
		containers, err := parseNumber(rest[0][len(containersOption):])
		if err != nil {
			return "", applications.MovementInput{}, ErrInvalidArguments
		}
		in.Containers = &containers
		rest = rest[1:]
	}
	in.Note = strings.Join(rest, " ")

	return args[0], in, nil
}

func parseNumber(value string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
}

func confirmation(appName string, mv models.DailyMovement, progress movements.Progress) string {
	msg := fmt.Sprintf("Movimiento registrado en %s: %.2f %s de %s en el lote %s.", appName, mv.Quantity, mv.Unit, mv.ProductName, mv.LotID)
	for _, u := range progress.Products {
		if u.ProductID == mv.ProductID {
			msg += fmt.Sprintf(" Van %.2f de %.2f (%.2f%%).", u.Consumed, u.Planned, u.PercentageUsed)
		}
	}
	for _, a := range progress.Alerts {
		if a.ProductID == mv.ProductID {
			msg += "\n" + reporting.FormatAlerts([]movements.Alert{a})
		}
	}
	return strings.TrimRight(msg, "\n")
}

// userMessage turns errors a field worker can act on into a reply.
func userMessage(err error) (string, bool) {
	var verrs models.ValidationErrors
	var gate *applications.StockGateError
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrInvalidArguments):
		return "No pude leer el comando.\n" + helpReply, true
	case errors.Is(err, models.ErrNotFound):
		return "No encontré esa aplicación.", true
	case errors.As(err, &gate):
		return "Hay faltantes de inventario sin confirmar: " + gate.Error(), true
	case errors.Is(err, lifecycle.ErrOperationNotAllowed), errors.Is(err, lifecycle.ErrInvalidTransition):
		return "La aplicación no permite esa operación en su estado actual.", true
	case errors.As(err, &verrs):
		lines := make([]string, 0, len(verrs))
		for _, v := range verrs {
			lines = append(lines, "- "+v.Message)
		}
		return "No se registró:\n" + strings.Join(lines, "\n"), true
	}
	return "", false
}
