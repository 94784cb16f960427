package jwttoken

import (
	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
)

// ResolveActor implements the auth middleware's ActorResolver interface.
func (s *Service) ResolveActor(tokenString string) (id.UserID, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return id.UserID{}, err
	}
	actorID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "token carries an invalid user id")
	}
	return actorID, nil
}
