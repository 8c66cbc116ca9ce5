package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vitrine/backend/internal/db"
	"vitrine/backend/internal/models"
	"vitrine/backend/internal/utils"
)

// ITeamService manages sales teams and resolves which contacts a buyer may
// be routed to for a seller's published listings. Resolution is a pure
// read-time filter: it never guesses among multiple teams and never mutates.
type ITeamService interface {
	CreateTeam(ctx context.Context, sellerID utils.SixID, req Requester, name string) (*models.SalesTeam, error)
	FindTeamByID(ctx context.Context, teamID utils.SixID) (*models.SalesTeam, error)
	AddMember(ctx context.Context, teamID utils.SixID, req Requester, userID utils.SixID, name, phone string) (*models.SalesTeam, error)
	RemoveMember(ctx context.Context, teamID, memberID utils.SixID, req Requester) error
	SetMemberAvailability(ctx context.Context, teamID, memberID utils.SixID, req Requester, available bool) error
	ResolveTeams(ctx context.Context, sellerID utils.SixID) ([]models.SalesTeam, error)
	SelectTeam(teams []models.SalesTeam) (*models.SalesTeam, error)
	AvailableMembers(ctx context.Context, teamID utils.SixID) ([]models.TeamMember, error)
}

const teamsCollection = "sales_teams"

type teamService struct {
	db *mongo.Database
}

// NewTeamService creates a new TeamService.
func NewTeamService(database *mongo.Database) ITeamService {
	return &teamService{db: database}
}

// CreateTeam creates an empty sales team for a seller.
func (s *teamService) CreateTeam(ctx context.Context, sellerID utils.SixID, req Requester, name string) (*models.SalesTeam, error) {
	if !req.IsAdmin && sellerID != req.UserID {
		return nil, ErrNotOwner
	}
	now := time.Now().UTC()
	team := &models.SalesTeam{
		SellerID:  sellerID,
		Name:      name,
		Members:   []models.TeamMember{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertOne(ctx, s.db.Collection(teamsCollection), team); err != nil {
		return nil, fmt.Errorf("failed to insert team for seller %s: %w", sellerID.String(), err)
	}
	return team, nil
}

// FindTeamByID fetches a non-deleted team.
func (s *teamService) FindTeamByID(ctx context.Context, teamID utils.SixID) (*models.SalesTeam, error) {
	var team models.SalesTeam
	err := s.db.Collection(teamsCollection).FindOne(ctx, bson.M{"_id": teamID, "deleted": false}).Decode(&team)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding team %s: %w", teamID.String(), err)
	}
	return &team, nil
}

// AddMember appends a contact to the team. Members keep insertion order;
// routing reads rely on it.
func (s *teamService) AddMember(ctx context.Context, teamID utils.SixID, req Requester, userID utils.SixID, name, phone string) (*models.SalesTeam, error) {
	team, err := s.FindTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !req.IsAdmin && team.SellerID != req.UserID {
		return nil, ErrNotOwner
	}

	member := models.TeamMember{
		ID:        utils.NewSixID(),
		UserID:    userID,
		Name:      name,
		Phone:     phone,
		Available: true,
		AddedAt:   time.Now().UTC(),
	}
	filter := bson.M{"_id": teamID, "deleted": false}
	update := bson.M{
		"$push": bson.M{"members": member},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.SalesTeam
	if err := s.db.Collection(teamsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to add member to team %s: %w", teamID.String(), err)
	}
	return &updated, nil
}

// RemoveMember removes a contact from the team.
func (s *teamService) RemoveMember(ctx context.Context, teamID, memberID utils.SixID, req Requester) error {
	team, err := s.FindTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if !req.IsAdmin && team.SellerID != req.UserID {
		return ErrNotOwner
	}

	filter := bson.M{"_id": teamID, "deleted": false, "members._id": memberID}
	update := bson.M{
		"$pull": bson.M{"members": bson.M{"_id": memberID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.db.Collection(teamsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove member %s from team %s: %w", memberID.String(), teamID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("member %s: %w", memberID.String(), ErrNotFound)
	}
	return nil
}

// SetMemberAvailability flips a member's availability flag.
func (s *teamService) SetMemberAvailability(ctx context.Context, teamID, memberID utils.SixID, req Requester, available bool) error {
	team, err := s.FindTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if !req.IsAdmin && team.SellerID != req.UserID {
		return ErrNotOwner
	}

	filter := bson.M{"_id": teamID, "deleted": false, "members._id": memberID}
	update := bson.M{"$set": bson.M{
		"members.$.available": available,
		"updated_at":          time.Now().UTC(),
	}}
	result, err := s.db.Collection(teamsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update member %s availability in team %s: %w", memberID.String(), teamID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("member %s: %w", memberID.String(), ErrNotFound)
	}
	return nil
}

// ResolveTeams returns all teams owned by the seller, oldest first.
func (s *teamService) ResolveTeams(ctx context.Context, sellerID utils.SixID) ([]models.SalesTeam, error) {
	coll := s.db.Collection(teamsCollection)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{"seller_id": sellerID, "deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve teams for seller %s: %w", sellerID.String(), err)
	}
	defer cursor.Close(ctx)
	teams := []models.SalesTeam{}
	if err = cursor.All(ctx, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// SelectTeam picks the contact team for routing. No team is a valid terminal
// state reported as (nil, nil); more than one requires the caller to obtain
// an explicit choice, signalled by ErrAmbiguousSelection.
func (s *teamService) SelectTeam(teams []models.SalesTeam) (*models.SalesTeam, error) {
	switch len(teams) {
	case 0:
		return nil, nil
	case 1:
		return &teams[0], nil
	default:
		return nil, ErrAmbiguousSelection
	}
}

// AvailableMembers returns the team's available members in insertion order.
// An empty slice is valid and distinct from a missing team, which reports
// ErrNotFound.
func (s *teamService) AvailableMembers(ctx context.Context, teamID utils.SixID) ([]models.TeamMember, error) {
	team, err := s.FindTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return team.AvailableMembers(), nil
}
