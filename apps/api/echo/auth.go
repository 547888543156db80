package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
	inmemdb "github.com/trezcool/masomo-portal/storage/school/inmem"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.Server.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(user.Claims),
	}
	contextUserKey = "user"
)

func GetUserClaims(acc inmemdb.Account, origIat ...int64) *user.Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &user.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   acc.ID,
			Audience:  "Portal",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     acc.Username,
		Name:         acc.Name,
		Role:         string(acc.Role),
		IsParent:     acc.Role == user.RoleParent,
		IsTeacher:    acc.Role == user.RoleTeacher,
		StudentID:    acc.StudentID,
	}
	return claims
}

func authenticate(uname, pwd string, db *inmemdb.DB) (inmemdb.Account, error) {
	acc, err := db.AccountByUsername(uname)
	if err != nil {
		if err == inmemdb.ErrNotFound {
			return inmemdb.Account{}, errAuthenticationFailed
		}
		return inmemdb.Account{}, errors.Wrap(err, "finding account by username")
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return inmemdb.Account{}, errAuthenticationFailed
	}
	return acc, nil
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *user.Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (user.Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*user.Claims); ok {
			return *claims, nil
		}
	}
	return user.Claims{}, errUnauthorized
}

// contextViewer is the authenticated user, as described by their token.
func contextViewer(ctx echo.Context) (user.Viewer, error) {
	if viewer, ok := ctx.Get(contextUserKey).(user.Viewer); ok {
		return viewer, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.Viewer{}, err
	}
	viewer := claims.Viewer()
	ctx.Set(contextUserKey, viewer)
	return viewer, nil
}
