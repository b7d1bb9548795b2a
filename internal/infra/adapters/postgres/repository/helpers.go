package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/qrave1/StudyRoom/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func requireAffected(op string, res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}

	if aff == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	return nil
}
