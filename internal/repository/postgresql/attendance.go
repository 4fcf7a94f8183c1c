package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
)

// leaveAttendanceRepository reads loss-of-pay windows from approved leave
// requests of unpaid leave types.
type leaveAttendanceRepository struct {
	db database.Querier
}

func NewAttendanceRepository(db database.Querier) payroll.AttendanceSource {
	return &leaveAttendanceRepository{db: db}
}

func (r *leaveAttendanceRepository) ListLOPWindows(ctx context.Context, employeeID string, from, to time.Time) ([]payroll.LOPWindow, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT lr.start_date, lr.end_date
		FROM leave_requests lr
		INNER JOIN leave_types lt ON lr.leave_type_id = lt.id
		WHERE lr.employee_id = $1
			AND lr.status = 'approved'
			AND lt.is_paid = FALSE
			AND lr.start_date <= $3
			AND lr.end_date >= $2
		ORDER BY lr.start_date
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid leave: %w", err)
	}
	defer rows.Close()

	var windows []payroll.LOPWindow
	for rows.Next() {
		var w payroll.LOPWindow
		if err := rows.Scan(&w.StartDate, &w.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan unpaid leave: %w", err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unpaid leave: %w", err)
	}

	return windows, nil
}
